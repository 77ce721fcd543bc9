package harness

import (
	"context"
	"errors"
	"fmt"
)

// Verifier checks a side effect after a command's output matched.
// A nil error means the check held; otherwise the error text is the
// failure reason shown in the report.
type Verifier interface {
	Verify(ctx context.Context, f *Fixture, store GlobalStore) error
}

// VerifierFunc adapts a function to a Verifier.
type VerifierFunc func(ctx context.Context, f *Fixture, store GlobalStore) error

// Verify calls fn.
func (fn VerifierFunc) Verify(ctx context.Context, f *Fixture, store GlobalStore) error {
	return fn(ctx, f, store)
}

// FileContent checks that a file relative to the fixture root holds Want.
type FileContent struct {
	Path   string
	Want   string
	Reason string
}

func (v FileContent) Verify(ctx context.Context, f *Fixture, store GlobalStore) error {
	got, err := f.ReadFile(v.Path)
	if err != nil {
		return reason(v.Reason, fmt.Sprintf("%s not readable: %v", v.Path, err))
	}
	if got != v.Want {
		return reason(v.Reason, fmt.Sprintf("%s: expected %q, got %q", v.Path, v.Want, got))
	}
	return nil
}

// StoreLineCount checks how many times an exact key=value line appears in
// the global store.
type StoreLineCount struct {
	Line   string
	Count  int
	Reason string
}

func (v StoreLineCount) Verify(ctx context.Context, f *Fixture, store GlobalStore) error {
	lines, err := snapshot(ctx, store)
	if err != nil {
		return err
	}
	if n := CountLine(lines, v.Line); n != v.Count {
		return reason(v.Reason, fmt.Sprintf("expected %d %q entries, found %d", v.Count, v.Line, n))
	}
	return nil
}

// StorePrefixCount checks how many global store entries start with Prefix.
type StorePrefixCount struct {
	Prefix string
	Count  int
	Reason string
}

func (v StorePrefixCount) Verify(ctx context.Context, f *Fixture, store GlobalStore) error {
	lines, err := snapshot(ctx, store)
	if err != nil {
		return err
	}
	if n := CountPrefix(lines, v.Prefix); n != v.Count {
		return reason(v.Reason, fmt.Sprintf("expected %d %s* entries, found %d", v.Count, v.Prefix, n))
	}
	return nil
}

// CommandOutput runs another command in the fixture and compares its
// normalized output with Want. The reason is followed by the actual output.
type CommandOutput struct {
	Command string
	Want    string
	Reason  string
}

func (v CommandOutput) Verify(ctx context.Context, f *Fixture, store GlobalStore) error {
	got, err := f.Exec(ctx, v.Command)
	if err != nil {
		return reason(v.Reason, fmt.Sprintf("%q failed: %v", v.Command, err))
	}
	if Normalize(got) != Normalize(v.Want) {
		msg := v.Reason
		if msg == "" {
			msg = fmt.Sprintf("unexpected output from %q", v.Command)
		}
		return fmt.Errorf("%s:\n%s", msg, got)
	}
	return nil
}

// All runs verifiers in order and returns the first failure.
func All(verifiers ...Verifier) Verifier {
	return VerifierFunc(func(ctx context.Context, f *Fixture, store GlobalStore) error {
		for _, v := range verifiers {
			if err := v.Verify(ctx, f, store); err != nil {
				return err
			}
		}
		return nil
	})
}

func snapshot(ctx context.Context, store GlobalStore) ([]string, error) {
	if store == nil {
		return nil, NewError(CodeStore, "no global store configured")
	}
	return store.Snapshot(ctx)
}

// reason prefers the author's message over the generated detail.
func reason(custom, detail string) error {
	if custom != "" {
		return errors.New(custom)
	}
	return errors.New(detail)
}
