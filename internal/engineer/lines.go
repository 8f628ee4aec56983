package engineer

import (
	"time"

	"github.com/sjawhar/pit-radio/internal/announce"
)

const (
	IntroTag    = "intro_start"
	IntroText   = "Engineer here, radio check. Good luck out there!"
	SignOffTag  = "race_finish"
	SignOffText = "Solid stint. See you in the garage, we'll debrief later."
)

func introRequest(now time.Time) announce.Request {
	return announce.Request{Kind: announce.KindIntro, Tag: IntroTag, Text: IntroText, IssuedAt: now}
}

func signOffRequest(now time.Time) announce.Request {
	return announce.Request{Kind: announce.KindSignOff, Tag: SignOffTag, Text: SignOffText, SignOff: true, IssuedAt: now}
}
