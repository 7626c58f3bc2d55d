// Command classdb-console is a line-editing REPL for manually inspecting a
// running classdb instance: page dumps, the lock table, forced aborts. It is
// not a SQL shell.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/hawkmoon910/classdb/godb"
)

func main() {
	configPath := flag.String("config", "", "path to a classdb config YAML file")
	flag.Parse()

	var cfg *godb.Config
	if *configPath != "" {
		loaded, err := godb.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	} else {
		cfg = &godb.Config{}
	}

	db, err := godb.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	rl, err := readline.New("classdb> ")
	if err != nil {
		log.Fatalf("readline: %v", err)
	}
	defer rl.Close()

	fmt.Println("classdb debug console. Commands: tables, pages <table>, locks, abort <tid>, quit")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Printf("readline: %v", err)
			return
		}
		runCommand(db, strings.TrimSpace(line))
	}
}

func runCommand(db *godb.Database, line string) {
	if line == "" {
		return
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "quit", "exit":
		db.Close()
		os.Exit(0)
	case "tables":
		for _, name := range db.Catalog.Names() {
			fmt.Println(name)
		}
	case "pages":
		if len(fields) < 2 {
			fmt.Println("usage: pages <table>")
			return
		}
		file, err := db.Catalog.TableByName(fields[1])
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Printf("%s: %d pages\n", fields[1], file.NumPages())
	case "locks":
		fmt.Printf("active locks: %d\n", db.Locks.HeldLockCount())
	case "abort":
		if len(fields) < 2 {
			fmt.Println("usage: abort <tid>")
			return
		}
		n, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Println(err)
			return
		}
		db.Abort(godb.TransactionID(n))
		fmt.Println("aborted")
	default:
		fmt.Printf("unknown command %q\n", fields[0])
	}
}
