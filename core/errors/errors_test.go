package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDocumentError(t *testing.T) {
	tests := []struct {
		name     string
		err      *DocumentError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with path",
			err:      &DocumentError{Path: "session01.eaf", Message: "no ANNOTATION_DOCUMENT root"},
			wantMsg:  "malformed document session01.eaf: no ANNOTATION_DOCUMENT root",
			wantBase: ErrMalformedDocument,
		},
		{
			name:     "without path",
			err:      &DocumentError{Message: "truncated XML"},
			wantMsg:  "malformed document: truncated XML",
			wantBase: ErrMalformedDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, tt.wantBase) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tt.err, tt.wantBase)
			}
		})
	}

	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("unexpected EOF")
		err := &DocumentError{Path: "a.eaf", Message: "parse failed", Err: underlyingErr}
		if got := err.Unwrap(); got != underlyingErr {
			t.Errorf("Unwrap() = %v, want %v", got, underlyingErr)
		}
	})
}

func TestVersionError(t *testing.T) {
	err := &VersionError{Marker: "bela9", Path: "x.eaf"}
	want := `unsupported convention version "bela9" in x.eaf`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Error("VersionError should wrap ErrUnsupportedVersion")
	}

	err = &VersionError{Marker: "bela9"}
	want = `unsupported convention version "bela9"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestReferenceDataError(t *testing.T) {
	err := NewReferenceData("lexicon:Mandarin", nil)
	if got := err.Error(); got != "reference data lexicon:Mandarin unavailable" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrMissingReferenceData) {
		t.Error("ReferenceDataError should wrap ErrMissingReferenceData")
	}

	underlying := fmt.Errorf("no such file")
	err = NewReferenceData("lexicon:Malay", underlying)
	if got := err.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}
}

func TestTokenError(t *testing.T) {
	err := NewToken(":v:xyz-code", "invalid vocal sound tag")
	want := "invalid vocal sound tag (:v:xyz-code)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("TokenError should wrap ErrInvalidInput")
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"document error", &DocumentError{Message: "broken"}, true},
		{"version error", &VersionError{Marker: "bela0"}, true},
		{"token error", NewToken("x", "bad"), false},
		{"reference data", NewReferenceData("lexicon:English", nil), false},
		{"wrapped document error", Wrap(&DocumentError{Message: "broken"}, "reading"), true},
		{"plain error", fmt.Errorf("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	base := fmt.Errorf("base")
	wrapped := Wrap(base, "context")
	if wrapped.Error() != "context: base" {
		t.Errorf("Wrap() = %q, want %q", wrapped.Error(), "context: base")
	}
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should match base")
	}

	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
	wrapped = Wrapf(base, "record %d", 7)
	if wrapped.Error() != "record 7: base" {
		t.Errorf("Wrapf() = %q", wrapped.Error())
	}
}
