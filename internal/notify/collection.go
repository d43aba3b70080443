package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"sierraspos/internal/domain"
	applog "sierraspos/internal/log"
)

// Debtors lists the families that owe money and have an email on file.
type Debtors interface {
	ListDebtors(ctx context.Context) ([]domain.Family, error)
}

// CollectionReport summarizes one collection run.
type CollectionReport struct {
	Families int   `json:"families"`
	Sent     int   `json:"sent"`
	Failed   int   `json:"failed"`
	Amount   int64 `json:"amount"`
}

// CollectionJob mails a balance notice to every debtor family.
type CollectionJob struct {
	debtors  Debtors
	notifier *Notifier
}

func NewCollectionJob(d Debtors, n *Notifier) *CollectionJob {
	return &CollectionJob{debtors: d, notifier: n}
}

// Run sends the notices one by one. A failed send is counted and logged;
// the run goes on with the next family.
func (j *CollectionJob) Run(ctx context.Context) (CollectionReport, error) {
	var rep CollectionReport
	fams, err := j.debtors.ListDebtors(ctx)
	if err != nil {
		return rep, fmt.Errorf("list debtors: %w", err)
	}
	rep.Families = len(fams)
	for _, f := range fams {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := j.notifier.Collection(ctx, f); err != nil {
			rep.Failed++
			continue
		}
		rep.Sent++
		rep.Amount += f.Balance
	}
	applog.Audit(nil, "collection.run", map[string]any{
		"families": rep.Families, "sent": rep.Sent, "failed": rep.Failed, "amount": rep.Amount,
	})
	return rep, nil
}

// Schedule registers the job on a gocron scheduler with a standard
// five-field cron expression. An empty expression returns a nil scheduler.
// The caller starts and stops it.
func (j *CollectionJob) Schedule(expr string, loc *time.Location) (*gocron.Scheduler, error) {
	if expr == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()
	_, err := s.Cron(expr).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := j.Run(ctx); err != nil {
			applog.Error(nil, "collection.run", err, nil)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule collection %q: %w", expr, err)
	}
	return s, nil
}
