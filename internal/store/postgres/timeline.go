package postgres

import (
	"context"
	"database/sql"

	"github.com/alfredjeanlab/gatewarden/internal/model"
)

const timelineColumns = `seq, event_id, project_id, event_type, ts, summary, actor, detail, finding_id, task_packet_id, evaluation_id`

func queryAppendTimelineEvent(ctx context.Context, db executor, e *model.TimelineEvent) error {
	if err := model.ValidateTimelineEvent(e); err != nil {
		return err
	}
	var detail any
	if len(e.Detail) > 0 {
		detail = []byte(e.Detail)
	}
	return db.QueryRowContext(ctx, `
		INSERT INTO timeline_events (event_id, project_id, event_type, ts, summary, actor, detail, finding_id, task_packet_id, evaluation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq`,
		e.EventID, e.ProjectID, e.EventType, e.Timestamp, e.Summary,
		nullString(e.Actor), detail, nullString(e.FindingID), nullString(e.TaskPacketID), nullString(e.EvaluationID),
	).Scan(&e.Seq)
}

func queryTimeline(ctx context.Context, db executor, projectID string, limit int) ([]*model.TimelineEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+timelineColumns+` FROM timeline_events
		WHERE project_id = $1
		ORDER BY ts DESC, seq DESC
		LIMIT $2`,
		projectID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.TimelineEvent
	for rows.Next() {
		var e model.TimelineEvent
		var actor, findingID, packetID, evalID sql.NullString
		var detail []byte
		if err := rows.Scan(&e.Seq, &e.EventID, &e.ProjectID, &e.EventType, &e.Timestamp, &e.Summary,
			&actor, &detail, &findingID, &packetID, &evalID); err != nil {
			return nil, err
		}
		e.Actor = actor.String
		e.FindingID = findingID.String
		e.TaskPacketID = packetID.String
		e.EvaluationID = evalID.String
		if len(detail) > 0 {
			e.Detail = detail
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
