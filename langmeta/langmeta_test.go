package langmeta

import "testing"

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "pt-br", want: "pt_BR"},
		{in: " EN_us ", want: "en_US"},
		{in: "ru", want: "ru"},
		{in: "", want: ""},
	}

	for _, tc := range cases {
		got := Canonicalize(tc.in)
		if got != tc.want {
			t.Fatalf("Canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsLocaleShape(t *testing.T) {
	for tag, want := range map[string]bool{
		"en_US":  true,
		"xx_YY":  true,
		"en":     false,
		"en-US":  false,
		"EN_us":  false,
		"eng_US": false,
	} {
		if got := IsLocaleShape(tag); got != want {
			t.Fatalf("IsLocaleShape(%q) = %v, want %v", tag, got, want)
		}
	}
}

func TestRecognize(t *testing.T) {
	r := NewRegistry(map[string]string{"de-at": "Deutsch (Österreich)"})

	t.Run("listed locale", func(t *testing.T) {
		got, ok := r.Recognize("zh_CN")
		if !ok || !got.Listed || got.Name != "Chinese (Simplified)" {
			t.Fatalf("Recognize(zh_CN) = %#v, %v", got, ok)
		}
	})

	t.Run("project locale overrides", func(t *testing.T) {
		got, ok := r.Recognize("de_AT")
		if !ok || !got.Listed || got.Name != "Deutsch (Österreich)" {
			t.Fatalf("Recognize(de_AT) = %#v, %v", got, ok)
		}
	})

	t.Run("iso codes", func(t *testing.T) {
		got, ok := r.Recognize("pt_AO")
		if !ok || got.Listed || got.Name == "" {
			t.Fatalf("Recognize(pt_AO) = %#v, %v", got, ok)
		}
	})

	t.Run("unknown codes", func(t *testing.T) {
		for _, tag := range []string{"xx_YY", "en_ZZ", "xx"} {
			if got, ok := r.Recognize(tag); ok {
				t.Fatalf("Recognize(%q) = %#v, want unrecognized", tag, got)
			}
		}
	})
}
