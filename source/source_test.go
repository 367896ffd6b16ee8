package source_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharkwire/kbbridge/link"
	"github.com/sharkwire/kbbridge/source"
)

type nopSource struct{ cfg source.Config }

func (nopSource) Run(ctx context.Context, _ *link.Session) error {
	<-ctx.Done()
	return nil
}

func TestRegistry(t *testing.T) {
	source.Register("TestNop", func(cfg source.Config, _ *slog.Logger) (source.Source, error) {
		return nopSource{cfg: cfg}, nil
	})

	tests := []struct {
		name    string
		kind    string
		wantErr bool
	}{
		{name: "exact", kind: "testnop"},
		{name: "case insensitive", kind: "TESTNOP"},
		{name: "unknown", kind: "carrier-pigeon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := source.New(source.Config{Kind: tt.kind, Baud: 9600}, nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, source.ErrUnknownSource)
				assert.Contains(t, err.Error(), "testnop")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 9600, src.(nopSource).cfg.Baud)
		})
	}

	assert.Contains(t, source.Kinds(), "testnop")
}
