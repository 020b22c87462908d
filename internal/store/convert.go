package store

import "time"

func toPersisted(t *Task) persistedTask {
	p := persistedTask{
		ID:      t.ID,
		Name:    t.Name,
		Kind:    t.Kind,
		Cron:    t.Cron,
		Enabled: t.Enabled,
		Sync:    t.Sync,
		Strm:    t.Strm,
	}

	if t.LastRun != nil {
		ns := t.LastRun.UnixNano()
		p.LastRun = &ns
	}

	if t.NextRun != nil {
		ns := t.NextRun.UnixNano()
		p.NextRun = &ns
	}

	return p
}

func fromPersisted(p persistedTask) *Task {
	t := &Task{
		ID:      p.ID,
		Name:    p.Name,
		Kind:    p.Kind,
		Cron:    p.Cron,
		Enabled: p.Enabled,
		Sync:    p.Sync,
		Strm:    p.Strm,
		Status:  StatusIdle,
	}

	if p.LastRun != nil {
		tm := time.Unix(0, *p.LastRun)
		t.LastRun = &tm
	}

	if p.NextRun != nil {
		tm := time.Unix(0, *p.NextRun)
		t.NextRun = &tm
	}

	return t
}
