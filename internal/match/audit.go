package match

import (
	"fmt"
	"time"

	gofrsuuid "github.com/gofrs/uuid/v5"
	"github.com/google/uuid"

	"github.com/vikashojha7762/resume-screening-system/internal/constants"
	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

// auditNamespace match_result事件的确定性ID命名空间，
// 同一(岗位,候选人)对在重跑时生成相同的事件ID，便于下游去重
var auditNamespace = gofrsuuid.NewV5(gofrsuuid.NamespaceURL, "resume-screening/match-result")

func matchInitiatedEvent(jobID, strategy string, candidateCount int) *types.AuditEvent {
	return &types.AuditEvent{
		EventID:   uuid.NewString(),
		EventType: constants.EventMatchInitiated,
		Timestamp: time.Now(),
		JobID:     jobID,
		Details: map[string]interface{}{
			"strategy":        strategy,
			"candidate_count": candidateCount,
		},
	}
}

func biasDetectionEvent(jobID string, report *types.BiasReport) *types.AuditEvent {
	return &types.AuditEvent{
		EventID:   uuid.NewString(),
		EventType: constants.EventBiasDetection,
		Timestamp: time.Now(),
		JobID:     jobID,
		Details: map[string]interface{}{
			"overall_bias_score": report.OverallBiasScore,
			"gender_bias_score":  report.GenderBias.Score,
			"age_bias_score":     report.AgeBias.Score,
			"institution_score":  report.InstitutionBias.Score,
			"recommendations":    report.Recommendations,
		},
	}
}

func matchResultEvent(score *types.MatchScore) *types.AuditEvent {
	pairKey := fmt.Sprintf("%s:%s", score.JobID, score.CandidateID)
	return &types.AuditEvent{
		EventID:     gofrsuuid.NewV5(auditNamespace, pairKey).String(),
		EventType:   constants.EventMatchResult,
		Timestamp:   time.Now(),
		JobID:       score.JobID,
		CandidateID: score.CandidateID,
		Details: map[string]interface{}{
			"overall_score": score.OverallScore,
			"mandatory_met": score.MandatoryMet,
		},
	}
}

func rankingChangeEvent(jobID, candidateID string, before, after int) *types.AuditEvent {
	return &types.AuditEvent{
		EventID:     uuid.NewString(),
		EventType:   constants.EventRankingChange,
		Timestamp:   time.Now(),
		JobID:       jobID,
		CandidateID: candidateID,
		Details: map[string]interface{}{
			"rank_before": before,
			"rank_after":  after,
			"reason":      "diversity_rerank",
		},
	}
}

func matchCompletedEvent(jobID, strategy string, scoredCount int, partial bool, elapsed time.Duration) *types.AuditEvent {
	return &types.AuditEvent{
		EventID:   uuid.NewString(),
		EventType: constants.EventMatchCompleted,
		Timestamp: time.Now(),
		JobID:     jobID,
		Details: map[string]interface{}{
			"strategy":     strategy,
			"scored_count": scoredCount,
			"partial":      partial,
			"duration_ms":  elapsed.Milliseconds(),
		},
	}
}
