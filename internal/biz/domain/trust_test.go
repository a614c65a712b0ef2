package domain

import "testing"

func TestIsSuspicious(t *testing.T) {
	suspicious := []string{
		"download http://evil.example/setup.exe now",
		"<script>alert(1)</script>",
		"run eval(payload)",
		"javascript:void(0)",
		"grab document.cookie please",
		"this is not a SCAM",
		"send to my bitcoin wallet",
		"click for password reset",
		"verify your bank account",
		"https://bit.ly/abc",
		"https://bit.ly",
		"see http://tinyurl.com",
		"http://shorte.st/x",
		"http://x.org/payload.vbs",
		"http://x.org/app.js",
		"http://x.org/tool.bin",
		"http://x.org/run.bat",
		"http://x.org/screen.scr",
		"script tag then alert(1)",
		"base64_decode($x)",
		"<img onmouseover=steal()>",
		"<body onload=go()>",
		"window.location = evil",
		"this is fraud",
	}
	for _, text := range suspicious {
		if !IsSuspicious(text) {
			t.Errorf("IsSuspicious(%q) = false, want true", text)
		}
	}

	benign := []string{
		"",
		"hello world",
		"see https://example.com/docs",
		"the scampi was great",
		"docs at http://example.com/app.json",
		"visit http://shop.example.com",
		"evaluate the results",
	}
	for _, text := range benign {
		if IsSuspicious(text) {
			t.Errorf("IsSuspicious(%q) = true, want false", text)
		}
	}
}

func TestContainsLink(t *testing.T) {
	if !ContainsLink("join www.example.com") {
		t.Error("expected www link to be detected")
	}
	if !ContainsLink("HTTPS://EXAMPLE.COM") {
		t.Error("expected uppercase scheme to be detected")
	}
	if ContainsLink("no links here") {
		t.Error("expected no link")
	}
}
