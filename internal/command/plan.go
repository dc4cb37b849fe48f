package command

import (
	"strconv"
	"strings"
)

// Flags are request properties that come from the mailbox rather than the
// typed line.
type Flags struct {
	Followup bool
}

// Plan is what one request cycle should do.
type Plan struct {
	Prompt string

	// Resume continues the previous reply for ResumeBudget tokens; the rest
	// of the request is ignored.
	Resume       bool
	ResumeBudget int

	// Reset clears the conversation before the prompt is sent.
	Reset bool

	// Includes lists paths to ingest; "" stands for the current file's
	// directory.
	Includes []string
	// IngestOnly means the include text is the whole answer; the model is
	// not called.
	IngestOnly bool

	// DeployNow deploys the last response to DeployDest and ends the cycle.
	DeployNow bool
	// DeployAfter asks for deployable output and deploys the reply.
	DeployAfter bool
	DeployDest  string
}

// CallsModel reports whether the plan sends anything to the model.
func (p Plan) CallsModel() bool {
	return !p.IngestOnly && !p.DeployNow
}

// NewPlan interprets parsed in two passes: first the commands that change
// session state, then the ones that add context or side effects.
func NewPlan(parsed Parsed, flags Flags, defaultBudget int) Plan {
	plan := Plan{Prompt: parsed.Prompt}

	if parsed.Prompt == "" && !parsed.HasSeparator {
		plan.Resume = true
		plan.ResumeBudget = defaultBudget
		return plan
	}

	keep := flags.Followup
	forceReset := false
	for _, cmd := range parsed.Commands {
		switch cmd.Kind {
		case KindContinue:
			plan.Resume = true
			plan.ResumeBudget = parseBudget(cmd, defaultBudget)
		case KindReset:
			forceReset = true
		case KindFollowup:
			keep = true
		}
	}
	if plan.Resume {
		return Plan{Resume: true, ResumeBudget: plan.ResumeBudget}
	}
	plan.Reset = forceReset || !keep

	for _, cmd := range parsed.Commands {
		switch cmd.Kind {
		case KindInclude:
			plan.Includes = append(plan.Includes, cmd.Arg)
		case KindDeploy:
			plan.DeployDest = cmd.Arg
			if parsed.Prompt == "" {
				plan.DeployNow = true
			} else {
				plan.DeployAfter = true
			}
		}
	}

	if plan.DeployNow {
		plan.Includes = nil
		return plan
	}
	plan.IngestOnly = parsed.Prompt == "" && len(plan.Includes) > 0
	return plan
}

// parseBudget reads continue's token count, falling back to def for a
// missing, malformed or non-positive argument.
func parseBudget(cmd Command, def int) int {
	if !cmd.HasArg {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(cmd.Arg))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
