package ns

import "errors"

// WalkStep maps one position in a device tree to the next: given the
// current qid and device-private position, resolve one name element
// (which may be ".."). Failure to find the name is an error; DevWalk
// decides whether that makes the whole walk fail.
type WalkStep func(qid Qid, aux any, name string) (Qid, any, error)

var errTooManyElements = errors.New("too many name elements")

// DevWalk implements the device walk contract over a step function,
// the way most in-tree devices want it: clone when there are no names,
// fail outright when the first element misses, and return a short
// result when a later one does.
func DevWalk(c, nc *Chan, names []string, step WalkStep) (*Walkqid, error) {
	if len(names) > MaxWalkElem {
		return nil, errTooManyElements
	}

	alloc := false
	if nc == nil {
		nc = NewChan()
		nc.Dev = c.Dev
		nc.DevNo = c.DevNo
		nc.Qid = c.Qid
		nc.Offset = c.Offset
		nc.Aux = c.Aux
		alloc = true
	}
	wq := &Walkqid{Clone: nc}

	qid, aux := c.Qid, c.Aux
	for i, name := range names {
		q, a, err := step(qid, aux, name)
		if err != nil {
			if alloc {
				nc.Close()
			}
			if i == 0 {
				return nil, err
			}
			wq.Clone = nil
			return wq, nil
		}
		qid, aux = q, a
		wq.Qids = append(wq.Qids, q)
	}
	nc.Qid = qid
	nc.Aux = aux
	return wq, nil
}
