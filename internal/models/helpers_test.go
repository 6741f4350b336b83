package models

import (
	"encoding/json"
	"testing"
)

func TestParseMillis(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Millis
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"digits", "1700000000000", 1700000000000, false},
		{"rfc3339", "2023-11-14T22:13:20Z", 1700000000000, false},
		{"python isoformat", "2023-11-14T22:13:20.000000", 1700000000000, false},
		{"date only", "2023-11-14", 1699920000000, false},
		{"garbage", "yesterday", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMillis(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMillis(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMillis(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestManualFileDecoding(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantYear FlexString
		wantTS   Millis
	}{
		{"numeric year and millis", `{"name":"a.pdf","year":2023,"timestamp":1700000000000}`, "2023", 1700000000000},
		{"string year and iso timestamp", `{"name":"a.pdf","year":"2021","timestamp":"2023-11-14T22:13:20"}`, "2021", 1700000000000},
		{"float millis", `{"name":"a.pdf","timestamp":1700000000000.0}`, "", 1700000000000},
		{"null fields", `{"name":"a.pdf","year":null,"timestamp":null}`, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m ManualFile
			if err := json.Unmarshal([]byte(tt.in), &m); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if m.Year != tt.wantYear {
				t.Errorf("Year = %q, want %q", m.Year, tt.wantYear)
			}
			if m.Timestamp != tt.wantTS {
				t.Errorf("Timestamp = %d, want %d", m.Timestamp, tt.wantTS)
			}
		})
	}
}

func TestManualFileKey(t *testing.T) {
	withID := ManualFile{Name: "m.pdf", FileID: "abc"}
	if got := withID.Key(); got != "abc" {
		t.Errorf("Key() = %q, want %q", got, "abc")
	}
	withoutID := ManualFile{Name: "m.pdf"}
	if got := withoutID.Key(); got != "m.pdf" {
		t.Errorf("Key() = %q, want %q", got, "m.pdf")
	}
}

func TestSortNewestFirst(t *testing.T) {
	files := []ManualFile{
		{Name: "old", Timestamp: 1},
		{Name: "new", Timestamp: 3},
		{Name: "mid", Timestamp: 2},
	}
	SortNewestFirst(files)
	for i, want := range []string{"new", "mid", "old"} {
		if files[i].Name != want {
			t.Errorf("files[%d] = %q, want %q", i, files[i].Name, want)
		}
	}
}

func TestIsAllowedExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want bool
	}{
		{".pdf", true},
		{".PDF", true},
		{".docx", true},
		{".exe", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsAllowedExtension(tt.ext); got != tt.want {
			t.Errorf("IsAllowedExtension(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}

func TestUploadMetadataFieldsSkipsEmpty(t *testing.T) {
	fields := UploadMetadata{Brand: "Samsung", Model: "X1"}.Fields()
	if len(fields) != 2 {
		t.Fatalf("Fields() = %v, want 2 entries", fields)
	}
	if fields["brand"] != "Samsung" || fields["model"] != "X1" {
		t.Errorf("unexpected fields: %v", fields)
	}
}
