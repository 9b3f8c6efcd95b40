package main

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/chesscore/internal/storage"
)

// withFlags makes the given flags look explicitly set for the duration of t.
func withFlags(t *testing.T, given ...string) {
	t.Helper()
	set := make(map[string]bool, len(given))
	for _, name := range given {
		set[name] = true
	}
	oldHash, oldBook, oldTB := *hashMB, *bookFile, *tbMode
	explicit = func(name string) bool { return set[name] }
	t.Cleanup(func() {
		explicit = flagSet
		*hashMB, *bookFile, *tbMode = oldHash, oldBook, oldTB
	})
}

func TestApplyOverrides(t *testing.T) {
	stored := func() *storage.Preferences {
		p := storage.DefaultPreferences()
		p.HashMB = 128
		p.OwnBook = false
		p.BookFile = "/saved/book.bin"
		p.Tablebase = storage.TablebaseLichess
		return p
	}

	tests := []struct {
		name    string
		flags   map[string]string
		env     map[string]string
		want    func(p *storage.Preferences)
		wantErr string
	}{
		{
			name: "stored preferences kept",
			want: func(p *storage.Preferences) {},
		},
		{
			name: "environment beats stored",
			env:  map[string]string{"CHESSCORE_HASH": "32", "CHESSCORE_TABLEBASE": "none"},
			want: func(p *storage.Preferences) {
				p.HashMB = 32
				p.Tablebase = storage.TablebaseNone
			},
		},
		{
			name:  "flag beats environment",
			flags: map[string]string{"hash": "16", "book": "/flag/book.bin"},
			env:   map[string]string{"CHESSCORE_HASH": "32", "CHESSCORE_BOOK": "/env/book.bin"},
			want: func(p *storage.Preferences) {
				p.HashMB = 16
				p.BookFile = "/flag/book.bin"
				p.OwnBook = true
			},
		},
		{
			name: "environment book enables the book",
			env:  map[string]string{"CHESSCORE_BOOK": "/env/book.bin"},
			want: func(p *storage.Preferences) {
				p.BookFile = "/env/book.bin"
				p.OwnBook = true
			},
		},
		{
			name:    "bad hash",
			env:     map[string]string{"CHESSCORE_HASH": "lots"},
			wantErr: "hash",
		},
		{
			name:    "unknown tablebase",
			flags:   map[string]string{"tablebase": "syzygy"},
			wantErr: "tablebase",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var given []string
			for name := range tc.flags {
				given = append(given, name)
			}
			withFlags(t, given...)
			for name, v := range tc.flags {
				switch name {
				case "hash":
					n, err := strconv.Atoi(v)
					require.NoError(t, err)
					*hashMB = n
				case "book":
					*bookFile = v
				case "tablebase":
					*tbMode = v
				}
			}
			for _, k := range []string{"CHESSCORE_HASH", "CHESSCORE_BOOK", "CHESSCORE_TABLEBASE"} {
				t.Setenv(k, "")
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			got := stored()
			err := applyOverrides(got)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			want := stored()
			tc.want(want)
			assert.Equal(t, want, got)
		})
	}
}

func TestSettingDefault(t *testing.T) {
	withFlags(t)
	t.Setenv("CHESSCORE_LOG_LEVEL", "")
	assert.Equal(t, "", setting("loglevel", "CHESSCORE_LOG_LEVEL", "debug", "info"), "set but empty env wins over the default")
	assert.Equal(t, "info", setting("loglevel", "CHESSCORE_UNSET_FOR_TEST", "debug", "info"))
}
