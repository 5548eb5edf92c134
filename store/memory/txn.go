package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/xraph/jobrow"
	"github.com/xraph/jobrow/collection"
	"github.com/xraph/jobrow/job"
	"github.com/xraph/jobrow/txn"
)

// CommitTransaction applies ops in order under the write lock. Every op is
// validated before the first one is applied, so a failing batch leaves the
// store untouched.
func (m *Store) CommitTransaction(_ context.Context, ops []txn.Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range ops {
		if err := m.validateLocked(op); err != nil {
			return err
		}
	}
	for _, op := range ops {
		m.applyLocked(op)
	}
	return nil
}

func (m *Store) validateLocked(op txn.Op) error {
	switch o := op.(type) {
	case txn.SetJobState:
		if _, ok := m.jobs[o.State.JobID.String()]; !ok {
			return fmt.Errorf("%s: %w", op.Name(), jobrow.ErrJobNotFound)
		}
	case txn.AddJobState:
		if _, ok := m.jobs[o.State.JobID.String()]; !ok {
			return fmt.Errorf("%s: %w", op.Name(), jobrow.ErrJobNotFound)
		}
	case txn.ExpireCollection:
		switch o.Kind {
		case collection.KindHash, collection.KindList, collection.KindSet:
		default:
			return fmt.Errorf("%w: %q", jobrow.ErrUnknownKind, o.Kind)
		}
	case txn.ExpireJob, txn.PersistJob, txn.AddToQueue, txn.IncrementCounter,
		txn.AddToSet, txn.RemoveFromSet, txn.InsertToList, txn.RemoveFromList,
		txn.TrimList, txn.SetRangeInHash, txn.RemoveHash:
	default:
		return fmt.Errorf("memory: unsupported operation %s", op.Name())
	}
	return nil
}

func (m *Store) applyLocked(op txn.Op) {
	switch o := op.(type) {
	case txn.ExpireJob:
		if j, ok := m.jobs[o.JobID.String()]; ok {
			at := o.ExpireAt
			j.ExpireAt = &at
		}

	case txn.PersistJob:
		if j, ok := m.jobs[o.JobID.String()]; ok {
			j.ExpireAt = nil
		}

	case txn.SetJobState:
		m.appendStateLocked(o.State.JobID.String(), copyState(o.State))
		j := m.jobs[o.State.JobID.String()]
		j.StateID = o.State.ID
		j.StateName = o.State.Name

	case txn.AddJobState:
		m.appendStateLocked(o.State.JobID.String(), copyState(o.State))

	case txn.AddToQueue:
		m.entries[o.Entry.ID.String()] = copyEntry(o.Entry)

	case txn.IncrementCounter:
		cp := *o.Counter
		cp.ExpireAt = cloneTime(o.Counter.ExpireAt)
		m.counters[cp.ID.String()] = &cp

	case txn.AddToSet:
		members := m.sets[o.Member.Key]
		if members == nil {
			members = make(map[string]*collection.SetMember)
			m.sets[o.Member.Key] = members
		}
		if existing, ok := members[o.Member.Value]; ok {
			existing.Score = o.Member.Score
			return
		}
		cp := *o.Member
		cp.ExpireAt = cloneTime(o.Member.ExpireAt)
		members[cp.Value] = &cp

	case txn.RemoveFromSet:
		delete(m.sets[o.Key], o.Value)
		if len(m.sets[o.Key]) == 0 {
			delete(m.sets, o.Key)
		}

	case txn.InsertToList:
		cp := *o.Item
		cp.ExpireAt = cloneTime(o.Item.ExpireAt)
		items := append(m.lists[cp.Key], &cp)
		slices.SortStableFunc(items, func(a, b *collection.ListItem) int {
			switch {
			case a.Seq < b.Seq:
				return -1
			case a.Seq > b.Seq:
				return 1
			}
			return 0
		})
		m.lists[cp.Key] = items

	case txn.RemoveFromList:
		m.lists[o.Key] = slices.DeleteFunc(m.lists[o.Key], func(it *collection.ListItem) bool {
			return it.Value == o.Value
		})
		if len(m.lists[o.Key]) == 0 {
			delete(m.lists, o.Key)
		}

	case txn.TrimList:
		offset, limit := collection.Window(o.Start, o.End)
		kept := window(m.lists[o.Key], offset, limit)
		if limit == 0 || len(kept) == 0 {
			delete(m.lists, o.Key)
			return
		}
		m.lists[o.Key] = slices.Clone(kept)

	case txn.SetRangeInHash:
		fields := m.hashes[o.Key]
		if fields == nil {
			fields = make(map[string]*collection.HashField, len(o.Fields))
			m.hashes[o.Key] = fields
		}
		for _, f := range o.Fields {
			if existing, ok := fields[f.Field]; ok {
				existing.Value = f.Value
				continue
			}
			cp := *f
			cp.ExpireAt = cloneTime(f.ExpireAt)
			fields[cp.Field] = &cp
		}

	case txn.RemoveHash:
		delete(m.hashes, o.Key)

	case txn.ExpireCollection:
		m.expireCollectionLocked(o.Kind, o.Key, o.ExpireAt)
	}
}

func (m *Store) appendStateLocked(jobKey string, s *job.State) {
	m.states[s.ID.String()] = s
	m.jobStates[jobKey] = append(m.jobStates[jobKey], s.ID.String())
}

func (m *Store) expireCollectionLocked(kind collection.Kind, key string, at *time.Time) {
	switch kind {
	case collection.KindHash:
		for _, f := range m.hashes[key] {
			f.ExpireAt = cloneTime(at)
		}
	case collection.KindSet:
		for _, sm := range m.sets[key] {
			sm.ExpireAt = cloneTime(at)
		}
	case collection.KindList:
		for _, it := range m.lists[key] {
			it.ExpireAt = cloneTime(at)
		}
	}
}
