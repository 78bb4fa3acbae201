package logger

import (
	"log"

	log_model "workshop-tracker/models/log"
	"workshop-tracker/types"

	"gorm.io/gorm"
)

// AsyncLogger persists API request logs off the request path.
type AsyncLogger struct {
	db      *gorm.DB
	channel chan types.LogEntry
}

func NewAsyncLogger(db *gorm.DB) *AsyncLogger {
	return &AsyncLogger{
		db:      db,
		channel: make(chan types.LogEntry, 100),
	}
}

// ProcessLog drains the channel into the logs table. Run it in its own
// goroutine.
func (logger *AsyncLogger) ProcessLog() {
	log.Println("Starting asynchronous logger...")

	for logEntry := range logger.channel {
		dbLog := log_model.Log{
			Method:          logEntry.Method,
			URL:             logEntry.URL,
			RequestBody:     logEntry.RequestBody,
			ResponseBody:    logEntry.ResponseBody,
			RequestHeaders:  logEntry.RequestHeaders,
			ResponseHeaders: logEntry.ResponseHeaders,
			StatusCode:      logEntry.StatusCode,
			CreatedAt:       logEntry.CreatedAt,
		}

		if err := logger.db.Create(&dbLog).Error; err != nil {
			log.Printf("Failed to insert new log entry: %v", err)
		}
	}
}

// Log pushes a log entry into the channel.
func (logger *AsyncLogger) Log(entry types.LogEntry) {
	logger.channel <- entry
}
