package godb

// aggregatorState is the common shape IntegerAggregator and StringAggregator
// both satisfy, so Aggregate can drive either one without caring which.
type aggregatorState interface {
	MergeTuple(t *Tuple) error
	Descriptor() *TupleDesc
	Finalize() []*Tuple
}

// Aggregate drains its child entirely on Open, feeding every tuple to an
// internal aggregatorState, and replays the finalized per-group results as
// a finite, restartable sequence -- a materializing operator like OrderBy.
type Aggregate struct {
	child  Operator
	state  aggregatorState
	desc   *TupleDesc
	output []*Tuple
	pos    int
}

// NewAggregate builds an Aggregate running state over child's output.
func NewAggregate(child Operator, state aggregatorState) *Aggregate {
	return &Aggregate{child: child, state: state, desc: state.Descriptor()}
}

func (a *Aggregate) Descriptor() *TupleDesc {
	return a.desc
}

func (a *Aggregate) Open(tid TransactionID) error {
	if err := a.child.Open(tid); err != nil {
		return err
	}
	return a.materialize()
}

func (a *Aggregate) materialize() error {
	for {
		has, err := a.child.HasNext()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		t, err := a.child.Next()
		if err != nil {
			return err
		}
		if err := a.state.MergeTuple(t); err != nil {
			return err
		}
	}
	a.output = a.state.Finalize()
	a.pos = 0
	return nil
}

// Rewind replays the already-materialized result from the start.
func (a *Aggregate) Rewind() error {
	a.pos = 0
	return nil
}

func (a *Aggregate) Close() error {
	a.output = nil
	return a.child.Close()
}

func (a *Aggregate) HasNext() (bool, error) {
	return a.pos < len(a.output), nil
}

func (a *Aggregate) Next() (*Tuple, error) {
	if a.pos >= len(a.output) {
		return nil, NewGoDBError(NoSuchElementError, "Next called with no tuple available")
	}
	t := a.output[a.pos]
	a.pos++
	return t, nil
}
