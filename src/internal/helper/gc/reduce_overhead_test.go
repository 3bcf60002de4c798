// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package gc

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferInterface(t *testing.T) {
	tests := []struct {
		name  string
		setup func(buf Buffer)
		want  string
	}{
		{
			name:  "Write byte slice",
			setup: func(buf Buffer) { buf.Write([]byte("hello")) },
			want:  "hello",
		},
		{
			name:  "WriteString and WriteByte",
			setup: func(buf Buffer) {
				buf.WriteString("ab")
				buf.WriteByte('c')
			},
			want:  "abc",
		},
		{
			name:  "ReadFrom",
			setup: func(buf Buffer) { buf.ReadFrom(strings.NewReader("from reader")) },
			want:  "from reader",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := Default.Get()
			defer func() {
				buf.Reset()
				Default.Put(buf)
			}()

			tt.setup(buf)
			assert.Equal(t, tt.want, buf.String())
			assert.Equal(t, len(tt.want), buf.Len())

			var out bytes.Buffer
			_, err := buf.WriteTo(&out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

type foreignBuffer struct{ bytes.Buffer }

func TestPoolIgnoresForeignBuffers(t *testing.T) {
	assert.NotPanics(t, func() { Default.Put(&foreignBuffer{}) })
}

func TestReadLimited(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		limit   int64
		wantErr error
	}{
		{name: "Under limit", input: "abc", limit: 10},
		{name: "Exactly at limit", input: "abcd", limit: 4},
		{name: "Over limit", input: "abcde", limit: 4, wantErr: ErrLimitExceeded},
		{name: "Unlimited", input: strings.Repeat("x", 4096), limit: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ReadLimited(strings.NewReader(tt.input), tt.limit)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, string(data))
		})
	}
}

func TestReadLimitedConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			want := strings.Repeat(string(rune('a'+n%26)), 100+n)
			got, err := ReadLimited(strings.NewReader(want), 1<<20)
			assert.NoError(t, err)
			assert.Equal(t, want, string(got))
		}(i)
	}
	wg.Wait()
}
