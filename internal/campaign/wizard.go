package campaign

import (
	"fmt"

	"github.com/mailcannon/mailcannon/internal/ingest"
)

// Step is a wizard state. Transitions are strictly linear:
// Importing → Configuring → Reviewing → Dispatching → Completed.
type Step int

const (
	StepImporting Step = iota
	StepConfiguring
	StepReviewing
	StepDispatching
	StepCompleted
)

func (s Step) String() string {
	switch s {
	case StepImporting:
		return "importing"
	case StepConfiguring:
		return "configuring"
	case StepReviewing:
		return "reviewing"
	case StepDispatching:
		return "dispatching"
	case StepCompleted:
		return "completed"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Wizard tracks the campaign pipeline state. There is no pause and no
// cancel once dispatch starts; Reset discards everything and returns to
// the import step.
type Wizard struct {
	step       Step
	recipients []ingest.Recipient
	config     Config
}

func NewWizard() *Wizard {
	return &Wizard{step: StepImporting}
}

func (w *Wizard) Step() Step         { return w.step }
func (w *Wizard) Config() *Config    { return &w.config }
func (w *Wizard) Recipients() []ingest.Recipient { return w.recipients }

// SetRecipients replaces the recipient list wholesale. Re-ingestion
// never merges.
func (w *Wizard) SetRecipients(recipients []ingest.Recipient) error {
	if w.step != StepImporting {
		return fmt.Errorf("cannot load recipients in step %s", w.step)
	}
	w.recipients = recipients
	return nil
}

// Advance moves to the next step, enforcing the transition guard for
// each edge.
func (w *Wizard) Advance() error {
	switch w.step {
	case StepImporting:
		if len(w.recipients) == 0 {
			return ErrNoRecipients
		}
		w.step = StepConfiguring
	case StepConfiguring:
		if err := w.config.Validate(len(w.recipients)); err != nil {
			return err
		}
		w.step = StepReviewing
	case StepReviewing:
		// Guard re-checked here: the config may have changed since the
		// review step was entered.
		if err := w.config.Validate(len(w.recipients)); err != nil {
			return err
		}
		w.step = StepDispatching
	case StepDispatching:
		w.step = StepCompleted
	default:
		return fmt.Errorf("cannot advance from step %s", w.step)
	}
	return nil
}

// Reset returns to the import step, discarding recipients and
// configuration.
func (w *Wizard) Reset() {
	w.step = StepImporting
	w.recipients = nil
	w.config = Config{}
}
