package project

import (
	"go.uber.org/zap"

	"github.com/temirov/tagmirror/internal/gitmirror"
)

const (
	logFieldWarningTokenConstant  = "warning"
	logFieldWarningDetailConstant = "detail"
	logFieldReportKindConstant    = "kind"
	reportKindStatusConstant      = "status"
	reportKindInfoConstant        = "info"
)

// Reporter delivers source messages through zap and promotes configured warnings to errors.
type Reporter struct {
	logger        *zap.Logger
	fatalWarnings map[gitmirror.WarningToken]struct{}
}

// NewReporter constructs a Reporter treating fatalWarnings as errors.
func NewReporter(logger *zap.Logger, fatalWarnings []string) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	fatalTokens := make(map[gitmirror.WarningToken]struct{}, len(fatalWarnings))
	for _, token := range fatalWarnings {
		fatalTokens[gitmirror.WarningToken(token)] = struct{}{}
	}
	return &Reporter{logger: logger, fatalWarnings: fatalTokens}
}

// Status reports progress.
func (reporter *Reporter) Status(message string) {
	reporter.logger.Info(message, zap.String(logFieldReportKindConstant, reportKindStatusConstant))
}

// Info reports a notable, non-problematic condition.
func (reporter *Reporter) Info(message string) {
	reporter.logger.Info(message, zap.String(logFieldReportKindConstant, reportKindInfoConstant))
}

// Warn reports a warning, or returns it as an error when its token is fatal.
func (reporter *Reporter) Warn(token gitmirror.WarningToken, message string, detail string) error {
	if _, fatal := reporter.fatalWarnings[token]; fatal {
		return &gitmirror.SourceError{Reason: gitmirror.ReasonFatalWarning, Message: message, Detail: detail}
	}
	reporter.logger.Warn(
		message,
		zap.String(logFieldWarningTokenConstant, string(token)),
		zap.String(logFieldWarningDetailConstant, detail),
	)
	return nil
}
