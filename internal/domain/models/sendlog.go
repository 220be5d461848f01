// internal/domain/models/sendlog.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SendLog kinds.
const (
	SendLogBatch  = "batch"
	SendLogSingle = "single"
)

// SendLog summarizes one dispatch attempt. Entries are append-only.
type SendLog struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Date            string              `bson:"date" json:"date"`
	Kind            string              `bson:"kind" json:"kind"`
	Timestamp       time.Time           `bson:"timestamp" json:"timestamp"`
	TotalRecipients int                 `bson:"total_recipients" json:"total_recipients"`
	SuccessCount    int                 `bson:"success_count" json:"success_count"`
	ErrorCount      int                 `bson:"error_count" json:"error_count"`
	WorkerID        *primitive.ObjectID `bson:"worker_id,omitempty" json:"worker_id,omitempty"`
}
