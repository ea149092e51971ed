package analyzer

import (
	"reflect"
	"testing"
)

func TestIsQualifyingScreenshot(t *testing.T) {
	keywords := []string{"Following", "Sold", "Items"}

	tests := []struct {
		name       string
		detections OcrResultSet
		want       bool
	}{
		{
			name:       "following present",
			detections: OcrResultSet{det("Nike Store", 50), det("Following", 30), det("1.2k", 20)},
			want:       true,
		},
		{
			name:       "sold present",
			detections: OcrResultSet{det("Adidas Store", 50), det("Sold", 30)},
			want:       true,
		},
		{
			name:       "items present",
			detections: OcrResultSet{det("The Shop", 50), det("Items", 30)},
			want:       true,
		},
		{
			name:       "case insensitive",
			detections: OcrResultSet{det("Store ABC", 50), det("FOLLOWING", 30)},
			want:       true,
		},
		{
			name:       "fullwidth keywords",
			detections: OcrResultSet{det("Nike Store", 50), det("ＦＯＬＬＯＷＩＮＧ", 30), det("ＳＯＬＤ", 20)},
			want:       true,
		},
		{
			name:       "substring match with padding",
			detections: OcrResultSet{det("  2.3k sold in 30 days ", 20)},
			want:       true,
		},
		{
			name:       "no keywords",
			detections: OcrResultSet{det("Some Store", 50), det("Random Text", 30)},
			want:       false,
		},
		{
			name:       "empty result set",
			detections: OcrResultSet{},
			want:       false,
		},
		{
			name:       "nil result set",
			detections: nil,
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsQualifyingScreenshot(tt.detections, keywords); got != tt.want {
				t.Errorf("IsQualifyingScreenshot() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsQualifyingScreenshot_BlankKeywordsNeverMatch(t *testing.T) {
	set := OcrResultSet{det("Nike Store", 50)}

	if IsQualifyingScreenshot(set, nil) {
		t.Error("Expected no match with nil keywords")
	}
	if IsQualifyingScreenshot(set, []string{"", "   "}) {
		t.Error("Expected blank keywords to be ignored")
	}
}

func TestMatchedKeywords(t *testing.T) {
	set := OcrResultSet{det("Following", 20), det("1.2k Sold", 15), det("SOLD OUT", 15)}

	got := MatchedKeywords(set, []string{"sold", "following", "items"})
	want := []string{"sold", "following"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MatchedKeywords() = %v, want %v", got, want)
	}
}
