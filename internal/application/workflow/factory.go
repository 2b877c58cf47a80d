package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/ohsms/internal/domain/entity"
	domainwf "github.com/garyjia/ohsms/internal/domain/workflow"
)

// BuildReportStateMachine creates a state machine positioned at the report's
// current stage. Every open stage permits every stage action; the target is
// max(stage, action target) so a machine can never move backwards. The
// terminal stage is left unconfigured.
func BuildReportStateMachine(report *entity.Report) (domainwf.StateMachine, error) {
	if !report.StageIndex.IsValid() {
		return nil, fmt.Errorf("%w: report %s has stage %d", ErrInvalidStage, report.ID, int(report.StageIndex))
	}

	builder := domainwf.NewBuilder()

	departmentSet := func(ctx context.Context) bool {
		return strings.TrimSpace(report.AssignedDept) != ""
	}

	for _, info := range domainwf.Stages() {
		if info.Terminal {
			continue
		}
		config := builder.Configure(info.Index)
		for _, action := range domainwf.StageActions {
			target, _ := action.Target()
			to := max(info.Index, target)
			if action == domainwf.ActionAssign {
				config.PermitIf(action, to, departmentSet)
				continue
			}
			config.Permit(action, to)
		}
	}

	return builder.Build(report.StageIndex), nil
}
