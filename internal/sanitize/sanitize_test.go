package sanitize

import "testing"

func TestText_StripsMarkup(t *testing.T) {
	cases := map[string]string{
		"":                                   "",
		"plain words":                        "plain words",
		"<b>hi</b><script>alert(1)</script>": "hi",
		"Tom & Jerry":                        "Tom & Jerry",
		`<a href="javascript:x()">link</a>`:  "link",
		"line one\nline two":                 "line one\nline two",
	}
	for in, want := range cases {
		if got := Text(in); got != want {
			t.Errorf("Text(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUsername_Trims(t *testing.T) {
	if got := Username("  <i>alice</i> "); got != "alice" {
		t.Errorf("Username = %q, want alice", got)
	}
}

func TestImageURL(t *testing.T) {
	valid := []string{
		"https://cdn.example/post-images/u-1.png",
		"http://localhost:8080/storage/v1/object/public/avatars/u-1.jpg",
	}
	for _, v := range valid {
		if _, ok := ImageURL(v); !ok {
			t.Errorf("expected %q to be accepted", v)
		}
	}

	invalid := []string{
		"javascript:alert(1)",
		"data:image/png;base64,AAAA",
		"/relative/path.png",
		"ftp://host/file.png",
		"",
	}
	for _, v := range invalid {
		if _, ok := ImageURL(v); ok {
			t.Errorf("expected %q to be rejected", v)
		}
	}
}
