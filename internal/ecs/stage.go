package ecs

import "fmt"

// System is a unit of computation invoked once per tick against a single
// ledger. The indicator solver composes Systems into the "indicators"
// stage; main-stage orchestration (which spans multiple ledgers and the
// broker) lives one level up, in internal/pipeline.
type System interface {
	Name() string
	Run(l *Ledger) error
}

// Stage is an ordered list of Systems invoked together.
type Stage struct {
	Name    string
	Systems []System
}

// Stage returns the named stage, creating it if absent. A newly created
// "indicators" stage is inserted immediately after "main" if one exists,
// otherwise appended — spec §4.2's stage-ordering rule.
func (l *Ledger) Stage(name string) *Stage {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, st := range l.stages {
		if st.Name == name {
			return st
		}
	}
	st := &Stage{Name: name}
	if name == "indicators" {
		idx := -1
		for i, s := range l.stages {
			if s.Name == "main" {
				idx = i
				break
			}
		}
		if idx >= 0 {
			l.stages = append(l.stages, nil)
			copy(l.stages[idx+2:], l.stages[idx+1:])
			l.stages[idx+1] = st
		} else {
			l.stages = append(l.stages, st)
		}
	} else {
		l.stages = append(l.stages, st)
	}
	return st
}

// RunStage runs every system of the named stage in order, aborting on the
// first error.
func (l *Ledger) RunStage(name string) error {
	st := l.Stage(name)
	for _, sys := range st.Systems {
		if err := sys.Run(l); err != nil {
			return fmt.Errorf("system %s: %w", sys.Name(), err)
		}
	}
	return nil
}

// AddSystem appends sys to st unless a system of the same name is already
// present, and reports whether it was added. Used by the indicator solver
// to dedupe calculator systems across fixed-point passes.
func AddSystem(st *Stage, sys System) bool {
	for _, s := range st.Systems {
		if s.Name() == sys.Name() {
			return false
		}
	}
	st.Systems = append(st.Systems, sys)
	return true
}
