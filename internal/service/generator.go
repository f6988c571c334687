package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"starplanner/internal/model"
	"starplanner/internal/recurrence"
	"starplanner/internal/repository"
	"starplanner/internal/timeutil"
)

// Generator materializes due instances for recurring templates. Instance
// uniqueness per (template, date) is enforced by the store's unique index;
// the generator treats a duplicate insert as "already exists" so concurrent
// ticks and the lazy completion path cannot create two rows for one date.
type Generator struct {
	tasks         *repository.TaskRepository
	users         *repository.UserRepository
	lookaheadDays int
}

func NewGenerator(tasks *repository.TaskRepository, users *repository.UserRepository, lookaheadDays int) *Generator {
	if lookaheadDays < 0 {
		lookaheadDays = 0
	}
	return &Generator{tasks: tasks, users: users, lookaheadDays: lookaheadDays}
}

// GenerateDueInstances walks every active template and creates the instances
// owed for the owner's local today plus the lookahead window. One template's
// failure is logged and does not abort the rest of the batch.
func (g *Generator) GenerateDueInstances(ctx context.Context, now time.Time) (int, error) {
	templates, err := g.tasks.ListActiveTemplates(ctx)
	if err != nil {
		return 0, fmt.Errorf("list templates: %w", err)
	}

	created := 0
	for i := range templates {
		n, err := g.generateForTemplate(ctx, &templates[i], now)
		created += n
		if err != nil {
			log.Printf("[warn] generate instances for template %d: %v", templates[i].ID, err)
		}
	}
	return created, nil
}

func (g *Generator) generateForTemplate(ctx context.Context, tpl *model.Task, now time.Time) (int, error) {
	rule := tpl.Rule()
	if err := rule.Validate(); err != nil {
		// Upstream validation should have caught this; skip, don't retry.
		return 0, fmt.Errorf("invalid rule: %w", err)
	}
	anchor, ok := tpl.DueDateValue()
	if !ok {
		return 0, fmt.Errorf("template has no anchor due date")
	}

	owner, err := g.users.FindByID(ctx, tpl.UserID)
	if err != nil {
		return 0, fmt.Errorf("load owner %d: %w", tpl.UserID, err)
	}
	today := timeutil.DateOf(now, owner.Location())

	var end *timeutil.Date
	if e, ok := tpl.EndDateValue(); ok {
		end = &e
		if today.After(e) {
			// Past the end date the template stops generating even if the
			// expiry-marking job has not run yet.
			if err := g.tasks.MarkCompleted(ctx, tpl, now); err != nil {
				return 0, fmt.Errorf("expire template: %w", err)
			}
			log.Printf("[info] template %d expired on %s", tpl.ID, e)
			return 0, nil
		}
	}

	created := 0
	for i := 0; i <= g.lookaheadDays; i++ {
		target := today.AddDays(i)
		if !recurrence.IsOccurrenceDate(anchor, target, rule, end) {
			continue
		}
		exists, err := g.tasks.InstanceExists(ctx, tpl.ID, target.Time())
		if err != nil {
			return created, fmt.Errorf("check instance for %s: %w", target, err)
		}
		if exists {
			continue
		}
		inserted, err := g.tasks.InsertInstance(ctx, model.NewInstance(tpl, target))
		if err != nil {
			return created, fmt.Errorf("insert instance for %s: %w", target, err)
		}
		if inserted {
			created++
			log.Printf("[info] created instance of template %d for %s", tpl.ID, target)
		}
	}
	return created, nil
}

// OnInstanceCompleted is the lazy generation path: completing an instance
// immediately materializes the template's next occurrence, measured from the
// completed instance's due date.
func (g *Generator) OnInstanceCompleted(ctx context.Context, instance *model.Task) error {
	if instance.ParentTaskID == nil {
		return nil
	}
	tpl, err := g.tasks.FindTemplate(ctx, *instance.ParentTaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("load template %d: %w", *instance.ParentTaskID, err)
	}
	if tpl.Completed {
		return nil
	}

	rule := tpl.Rule()
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid rule on template %d: %w", tpl.ID, err)
	}
	anchor, ok := instance.DueDateValue()
	if !ok {
		return nil
	}
	next, ok := recurrence.NextOccurrence(anchor, rule)
	if !ok {
		return fmt.Errorf("unknown repeat type %q on template %d", rule.Type, tpl.ID)
	}
	if end, ok := tpl.EndDateValue(); ok && next.After(end) {
		return nil
	}

	inserted, err := g.tasks.InsertInstance(ctx, model.NewInstance(tpl, next))
	if err != nil {
		return fmt.Errorf("insert next instance: %w", err)
	}
	if inserted {
		log.Printf("[info] created next instance of template %d for %s", tpl.ID, next)
	}
	return nil
}
