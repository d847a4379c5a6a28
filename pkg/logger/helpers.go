package logger

// LogPage logs the outcome of one listing page
func LogPage(log Logger, page, posts, accepted int) {
	log.InfoWithFields("page processed", map[string]interface{}{
		"page":     page,
		"posts":    posts,
		"accepted": accepted,
	})
}

// LogDownload logs a finished or failed image download
func LogDownload(log Logger, postID, url string, count int, err error) {
	fields := map[string]interface{}{
		"post_id": postID,
		"url":     url,
	}

	if err != nil {
		log.WithError(err).WarnWithFields("download failed, skipping", fields)
		return
	}
	fields["count"] = count
	log.InfoWithFields("downloaded", fields)
}

// LogSkip logs a post that was not downloaded
func LogSkip(log Logger, postID, reason, detail string) {
	log.DebugWithFields("skipped", map[string]interface{}{
		"post_id": postID,
		"reason":  reason,
		"detail":  detail,
	})
}

// LogSummary logs the final counters of a run
func LogSummary(log Logger, summary map[string]interface{}) {
	log.InfoWithFields("run finished", summary)
}

// LogComponentStart logs when a component starts
func LogComponentStart(log Logger, component string, config map[string]interface{}) {
	l := log.WithField("component", component)

	if len(config) > 0 {
		l = l.WithFields(config)
	}

	l.Info("component started")
}

// NewNopLogger returns a Logger that discards everything
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string)                                   {}
func (nopLogger) Info(string)                                    {}
func (nopLogger) Warn(string)                                    {}
func (nopLogger) Error(string)                                   {}
func (n nopLogger) WithField(string, interface{}) Logger         { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger     { return n }
func (n nopLogger) WithError(error) Logger                       { return n }
func (nopLogger) DebugWithFields(string, map[string]interface{}) {}
func (nopLogger) InfoWithFields(string, map[string]interface{})  {}
func (nopLogger) WarnWithFields(string, map[string]interface{})  {}
func (nopLogger) ErrorWithFields(string, map[string]interface{}) {}
