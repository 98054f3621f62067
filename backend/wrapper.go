package backend

import (
	"context"
	"log/slog"
	"time"
)

// Wrapper decorates a Backend with bounded retries. Transient failures
// are absorbed: the wrapper resets the transport session, waits out the
// backoff, and re-issues the operation. Fatal, configuration, and
// protocol failures surface immediately.
//
// Like the Backend it wraps, a Wrapper supports one in-flight operation;
// callers wanting parallelism open independent backends and wrap each.
type Wrapper struct {
	backend Backend
	policy  Policy
	logger  *slog.Logger

	// broken is set after a fatal failure. Further data operations are
	// refused until an explicit Reset, so a half-torn-down session can
	// never corrupt remote state.
	broken bool
}

// Option configures a Wrapper.
type Option func(*Wrapper)

// WithPolicy sets the retry policy. Unset fields fall back to
// DefaultPolicy values.
func WithPolicy(p Policy) Option {
	return func(w *Wrapper) { w.policy = p }
}

// WithLogger sets the logger for retry warnings.
func WithLogger(l *slog.Logger) Option {
	return func(w *Wrapper) { w.logger = l }
}

// NewWrapper builds a retrying wrapper around a connected backend.
func NewWrapper(b Backend, opts ...Option) *Wrapper {
	w := &Wrapper{backend: b}
	for _, opt := range opts {
		opt(w)
	}
	w.policy = w.policy.withDefaults()
	return w
}

// log returns the logger, falling back to a discard logger if nil.
func (w *Wrapper) log() *slog.Logger {
	if w.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.logger
}

// Put uploads the local file under the given remote name, retrying
// transient failures. Put on the underlying backend overwrites, so a
// retried attempt is safe.
func (w *Wrapper) Put(ctx context.Context, localPath, remoteName string) error {
	return w.do(ctx, "put", remoteName, func() error {
		return w.backend.Put(ctx, localPath, remoteName)
	})
}

// Get downloads the named object into the local file, retrying transient
// failures.
func (w *Wrapper) Get(ctx context.Context, remoteName, localPath string) error {
	return w.do(ctx, "get", remoteName, func() error {
		return w.backend.Get(ctx, remoteName, localPath)
	})
}

// List returns every object name at the target, retrying transient
// failures. Order is arbitrary; callers impose order by decoding names.
func (w *Wrapper) List(ctx context.Context) ([]string, error) {
	var names []string
	err := w.do(ctx, "list", "", func() error {
		var lerr error
		names, lerr = w.backend.List(ctx)
		return lerr
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Delete removes the named object. Deleting an object that is already
// gone is success, not an error.
func (w *Wrapper) Delete(ctx context.Context, remoteName string) error {
	return w.do(ctx, "delete", remoteName, func() error {
		err := w.backend.Delete(ctx, remoteName)
		if err != nil && IsNotFound(err) {
			return nil
		}
		return err
	})
}

// DeleteBatch deletes each name in order. It is plain sequential
// application of Delete, not an atomic remote call: a failure mid-batch
// leaves earlier deletions applied and returns the names not yet
// attempted alongside the error.
func (w *Wrapper) DeleteBatch(ctx context.Context, remoteNames []string) error {
	for i, name := range remoteNames {
		if err := w.Delete(ctx, name); err != nil {
			w.log().Error("batch delete stopped", "deleted", i, "remaining", len(remoteNames)-i, "error", err)
			return err
		}
	}
	return nil
}

// Query returns the size of the named object, or SizeMissing when it
// does not exist. A missing object is never an error here.
func (w *Wrapper) Query(ctx context.Context, remoteName string) (int64, error) {
	size := SizeMissing
	err := w.do(ctx, "query", remoteName, func() error {
		s, qerr := w.backend.Query(ctx, remoteName)
		if qerr != nil {
			if IsNotFound(qerr) {
				size = SizeMissing
				return nil
			}
			return qerr
		}
		size = s
		return nil
	})
	if err != nil {
		return SizeMissing, err
	}
	return size, nil
}

// QueryBatch queries each name in order and returns a complete mapping:
// every requested name has an entry, with SizeMissing for absent objects.
func (w *Wrapper) QueryBatch(ctx context.Context, remoteNames []string) (map[string]int64, error) {
	out := make(map[string]int64, len(remoteNames))
	for _, name := range remoteNames {
		size, err := w.Query(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = size
	}
	return out, nil
}

// Reset re-establishes the transport session and clears the broken state
// set by a prior fatal failure.
func (w *Wrapper) Reset(ctx context.Context) error {
	if err := w.backend.Reset(ctx); err != nil {
		return Wrap(KindOf(err), "reset", "", err)
	}
	w.broken = false
	return nil
}

// Close releases the underlying session permanently.
func (w *Wrapper) Close() error {
	w.broken = true
	return w.backend.Close()
}

// do runs one logical operation under the retry policy. Per attempt:
// call, classify, and either return (success, fatal) or reset the
// session, wait out the backoff, and try again. Exhaustion surfaces the
// last underlying error, marked fatal, carrying the operation name.
func (w *Wrapper) do(ctx context.Context, op, target string, fn func() error) error {
	if w.broken {
		return Errf(KindFatal, op, target, "backend needs an explicit reset after a fatal error")
	}

	bo := w.policy.newBackOff()
	var lastErr error
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		kind := KindOf(err)
		if kind != KindTransient {
			// A missing object or bad configuration does not damage the
			// session; only genuine fatal and protocol failures force a
			// reset before further use.
			if kind == KindFatal || kind == KindProtocol {
				w.broken = true
			}
			return Wrap(kind, op, target, err)
		}
		if attempt >= w.policy.MaxAttempts {
			break
		}

		w.log().Warn("attempt failed, retrying",
			"op", op, "target", target,
			"attempt", attempt, "max", w.policy.MaxAttempts,
			"error", err)

		// Tear down and rebuild the session before the next attempt; a
		// reset failure is part of the same transient episode.
		if rerr := w.backend.Reset(ctx); rerr != nil {
			w.log().Warn("session reset failed", "op", op, "error", rerr)
		}

		select {
		case <-time.After(bo.NextBackOff()):
		case <-ctx.Done():
			w.broken = true
			return Wrap(KindFatal, op, target, ctx.Err())
		}
	}

	w.broken = true
	w.log().Error("giving up", "op", op, "target", target, "attempts", w.policy.MaxAttempts, "error", lastErr)
	return &Error{Op: op, Target: target, Kind: KindFatal, Err: lastErr}
}
