package input

import (
	"testing"

	"github.com/Ravindra2377/KPR/internal/apperr"
	"github.com/stretchr/testify/assert"
)

type testParams struct {
	Name       string   `json:"name" validate:"required,max=10"`
	Visibility string   `json:"visibility" validate:"omitempty,oneof=public private"`
	Tags       []string `json:"tags" validate:"max=2"`
	Slots      int      `json:"slot_count" validate:"gt=0"`
}

func TestValidate(t *testing.T) {
	tcs := []struct {
		name    string
		params  testParams
		wantErr string
	}{
		{
			name:   "valid",
			params: testParams{Name: "pod", Visibility: "public", Slots: 1},
		},
		{
			name:    "missing name",
			params:  testParams{Slots: 1},
			wantErr: "name is required",
		},
		{
			name:    "too long",
			params:  testParams{Name: "a very long pod name", Slots: 1},
			wantErr: "name must be at most 10 characters",
		},
		{
			name:    "bad enum",
			params:  testParams{Name: "pod", Visibility: "secret", Slots: 1},
			wantErr: "visibility must be one of public private",
		},
		{
			name:    "too many tags",
			params:  testParams{Name: "pod", Tags: []string{"a", "b", "c"}, Slots: 1},
			wantErr: "tags must be at most 2 items",
		},
		{
			name:    "multiple failures",
			params:  testParams{},
			wantErr: "name is required, slot_count must be greater than 0",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.params)
			if tc.wantErr == "" {
				assert.NoError(t, err, "expected params to be valid")
				return
			}

			assert.True(t, apperr.Is(err, apperr.Invalid), "expected an Invalid error, got %v", err)
			assert.Equal(t, tc.wantErr, apperr.ReasonOf(err), "expected formatted validation message")
		})
	}
}

func TestClean(t *testing.T) {
	tcs := []struct {
		in   string
		want string
	}{
		{in: "Let's jam", want: "Let's jam"},
		{in: "  padded  ", want: "padded"},
		{in: "<b>bold</b> move", want: "bold move"},
		{in: "hi<script>alert('x')</script>", want: "hi"},
		{in: "rock & roll", want: "rock & roll"},
		{in: `<a href="javascript:alert(1)">click</a>`, want: "click"},
	}

	for _, tc := range tcs {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Clean(tc.in))
		})
	}
}

func TestCleanAll(t *testing.T) {
	got := CleanAll([]string{"music", " <i>video</i> ", "<script></script>"})
	assert.Equal(t, []string{"music", "video"}, got, "expected empty entries to be dropped")
}
