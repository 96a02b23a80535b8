package diag

import "github.com/pkg/errors"

// Collector accumulates diagnostics as a compile runs. Grounded on
// error_collector.hpp's ErrorCollector interface; its error/warn/info
// methods return void there and signal overflow by throwing
// TooManyMessagesException out of LimitErrorCollector. Go has no
// exceptions to unwind through a call chain the way C++ does, so each
// method here returns an error instead: nil in the ordinary case, or a
// non-nil sentinel once a LimitCollector downstream decides the
// compile should stop. Callers that don't care about early termination
// (CounterCollector, EmptyCollector, ScreenOutputCollector on their
// own) simply always return nil.
type Collector interface {
	Error(d Diagnostic) error
	Warn(d Diagnostic) error
	Info(d Diagnostic) error
}

// EmptyCollector discards every diagnostic. Grounded on
// EmptyErrorCollector.
type EmptyCollector struct{}

func (EmptyCollector) Error(Diagnostic) error { return nil }
func (EmptyCollector) Warn(Diagnostic) error  { return nil }
func (EmptyCollector) Info(Diagnostic) error  { return nil }

// ChainCollector fans a diagnostic out to every collector it holds, in
// order, stopping and returning the first non-nil error (the same
// short-circuit a thrown TooManyMessagesException gives
// ChainErrorCollector::error's for-loop in the original). Built via
// Builder rather than a public struct literal, matching
// ChainErrorCollector's private constructor plus nested Builder type.
type ChainCollector struct {
	collectors []Collector
}

// ChainBuilder assembles a ChainCollector one collector at a time.
type ChainBuilder struct {
	product *ChainCollector
}

func NewChainBuilder() *ChainBuilder {
	return &ChainBuilder{product: &ChainCollector{}}
}

func (b *ChainBuilder) Add(c Collector) *ChainBuilder {
	b.product.collectors = append(b.product.collectors, c)
	return b
}

func (b *ChainBuilder) Build() *ChainCollector {
	return b.product
}

func (c *ChainCollector) Error(d Diagnostic) error {
	for _, collector := range c.collectors {
		if err := collector.Error(d); err != nil {
			return err
		}
	}
	return nil
}

func (c *ChainCollector) Warn(d Diagnostic) error {
	for _, collector := range c.collectors {
		if err := collector.Warn(d); err != nil {
			return err
		}
	}
	return nil
}

func (c *ChainCollector) Info(d Diagnostic) error {
	for _, collector := range c.collectors {
		if err := collector.Info(d); err != nil {
			return err
		}
	}
	return nil
}

// FilterCollector routes each severity to a distinct delegate. Grounded
// on FilterErrorCollector, used the teacher's way to gate Warning to
// stderr only under -v (see VerboseMode in the teacher's cli.go) by
// giving the warn delegate an EmptyCollector in non-verbose runs.
type FilterCollector struct {
	ErrorCollector Collector
	WarnCollector  Collector
	InfoCollector  Collector
}

func (f FilterCollector) Error(d Diagnostic) error { return f.ErrorCollector.Error(d) }
func (f FilterCollector) Warn(d Diagnostic) error  { return f.WarnCollector.Warn(d) }
func (f FilterCollector) Info(d Diagnostic) error  { return f.InfoCollector.Info(d) }

// CounterCollector tallies diagnostics by severity without ever
// rejecting one. Grounded on CounterErrorCollector.
type CounterCollector struct {
	errorCount int
	warnCount  int
	infoCount  int
}

func (c *CounterCollector) Error(Diagnostic) error { c.errorCount++; return nil }
func (c *CounterCollector) Warn(Diagnostic) error  { c.warnCount++; return nil }
func (c *CounterCollector) Info(Diagnostic) error  { c.infoCount++; return nil }

func (c *CounterCollector) ErrorCount() int { return c.errorCount }
func (c *CounterCollector) WarnCount() int  { return c.warnCount }
func (c *CounterCollector) InfoCount() int  { return c.infoCount }

// TooManyMessagesError is returned once a LimitCollector's threshold
// for a severity is exceeded. Grounded on
// LimitErrorCollector::TooManyMessagesException.
type TooManyMessagesError struct {
	Severity Severity
	Limit    int
}

func (e *TooManyMessagesError) Error() string {
	return errors.Errorf("too many %ss, reaching limit %d", e.Severity, e.Limit).Error()
}

// LimitCollector counts diagnostics like CounterCollector, but once a
// severity's count exceeds its configured limit it returns a
// TooManyMessagesError, giving the CLI boundary (§4.11, §7's
// "configurable threshold") a sentinel error to stop the compile on
// instead of the original's thrown exception unwinding the C++ stack.
// A limit of 0 means unbounded, matching std::numeric_limits<size_t>::max
// as the original's default.
type LimitCollector struct {
	CounterCollector
	ErrorLimit int
	WarnLimit  int
	InfoLimit  int
}

func NewLimitCollector(errorLimit, warnLimit, infoLimit int) *LimitCollector {
	return &LimitCollector{ErrorLimit: errorLimit, WarnLimit: warnLimit, InfoLimit: infoLimit}
}

func (l *LimitCollector) Error(d Diagnostic) error {
	l.CounterCollector.Error(d)
	if l.ErrorLimit > 0 && l.ErrorCount() > l.ErrorLimit {
		return &TooManyMessagesError{Severity: Error, Limit: l.ErrorLimit}
	}
	return nil
}

func (l *LimitCollector) Warn(d Diagnostic) error {
	l.CounterCollector.Warn(d)
	if l.WarnLimit > 0 && l.WarnCount() > l.WarnLimit {
		return &TooManyMessagesError{Severity: Warning, Limit: l.WarnLimit}
	}
	return nil
}

func (l *LimitCollector) Info(d Diagnostic) error {
	l.CounterCollector.Info(d)
	if l.InfoLimit > 0 && l.InfoCount() > l.InfoLimit {
		return &TooManyMessagesError{Severity: Info, Limit: l.InfoLimit}
	}
	return nil
}
