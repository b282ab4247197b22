package domain

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "", want: ModeChallenge},
		{in: "  Debate ", want: ModeDebate},
		{in: "investor", want: ModeInvestor},
		{in: "researcher", want: ModeResearcher},
		{in: "roast", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseMode(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseMode(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseMode(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestAnalysisStatusProcessable(t *testing.T) {
	for status, want := range map[AnalysisStatus]bool{
		AnalysisPending:    true,
		AnalysisError:      true,
		AnalysisProcessing: false,
		AnalysisCompleted:  false,
	} {
		if got := status.Processable(); got != want {
			t.Errorf("%s.Processable() = %v, want %v", status, got, want)
		}
	}
}

func TestIdentityMetadataString(t *testing.T) {
	id := Identity{Metadata: map[string]any{"full_name": "  ", "name": "Ada", "n": 3}}
	if got := id.MetadataString("full_name", "name"); got != "Ada" {
		t.Fatalf("got %q", got)
	}
	if got := id.MetadataString("n", "missing"); got != "" {
		t.Fatalf("non-string metadata should be ignored, got %q", got)
	}
}
