// Package h264 implements the profile-level-id handling of RFC 6184 needed to match
// and answer H264 codecs in SDP.
package h264

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Profile is an H264 profile as described by the profile_idc/profile_iop pair.
type Profile byte

const (
	ProfileConstrainedBaseline Profile = iota + 1
	ProfileBaseline
	ProfileMain
	ProfileConstrainedHigh
	ProfileHigh
)

// Level is ten times the level number, except Level1b which is special.
type Level byte

const (
	Level1b Level = 0
	Level1  Level = 10
	Level11 Level = 11
	Level12 Level = 12
	Level13 Level = 13
	Level2  Level = 20
	Level21 Level = 21
	Level22 Level = 22
	Level3  Level = 30
	Level31 Level = 31
	Level32 Level = 32
	Level4  Level = 40
	Level41 Level = 41
	Level42 Level = 42
	Level5  Level = 50
	Level51 Level = 51
	Level52 Level = 52
)

// For level_idc=11 and profile_idc=0x42, 0x4D, or 0x58, the constraint set3
// flag specifies if level 1b or level 1.1 is used.
const constraintSet3Flag byte = 0x10

var (
	ErrInvalidLocalProfileLevelId  = errors.New("invalid local profile-level-id")
	ErrInvalidRemoteProfileLevelId = errors.New("invalid remote profile-level-id")
	ErrProfileMismatch             = errors.New("H264 profile mismatch")
)

type ProfileLevelId struct {
	Profile Profile
	Level   Level
}

// DefaultProfileLevelId is used when a codec carries no profile-level-id at all.
// RFC 6184 says Baseline level 1, but libwebrtc has always assumed
// ConstrainedBaseline level 3.1 and remote endpoints rely on that.
var DefaultProfileLevelId = ProfileLevelId{
	Profile: ProfileConstrainedBaseline,
	Level:   Level31,
}

// String returns the canonical three hex bytes, or "" for an invalid value.
func (p ProfileLevelId) String() string {
	if p.Level == Level1b {
		switch p.Profile {
		case ProfileConstrainedBaseline:
			return "42f00b"
		case ProfileBaseline:
			return "42100b"
		case ProfileMain:
			return "4d100b"
		default:
			return ""
		}
	}

	var idcIop string

	switch p.Profile {
	case ProfileConstrainedBaseline:
		idcIop = "42e0"
	case ProfileBaseline:
		idcIop = "4200"
	case ProfileMain:
		idcIop = "4d00"
	case ProfileConstrainedHigh:
		idcIop = "640c"
	case ProfileHigh:
		idcIop = "6400"
	default:
		return ""
	}

	return fmt.Sprintf("%s%02x", idcIop, byte(p.Level))
}

// bitPattern matches patterns such as "x1xx0000" where "x" may be either 0 or 1.
type bitPattern struct {
	mask        byte
	maskedValue byte
}

func newBitPattern(str string) bitPattern {
	return bitPattern{
		mask:        math.MaxUint8 - byteMaskString('x', str),
		maskedValue: byteMaskString('1', str),
	}
}

func (b bitPattern) isMatch(value byte) bool {
	return b.maskedValue == (value & b.mask)
}

type profilePattern struct {
	profileIdc byte
	profileIop bitPattern
	profile    Profile
}

// https://tools.ietf.org/html/rfc6184#section-8.1
var profilePatterns = []profilePattern{
	{0x42, newBitPattern("x1xx0000"), ProfileConstrainedBaseline},
	{0x4D, newBitPattern("1xxx0000"), ProfileConstrainedBaseline},
	{0x58, newBitPattern("11xx0000"), ProfileConstrainedBaseline},
	{0x42, newBitPattern("x0xx0000"), ProfileBaseline},
	{0x58, newBitPattern("10xx0000"), ProfileBaseline},
	{0x4D, newBitPattern("0x0x0000"), ProfileMain},
	{0x64, newBitPattern("00000000"), ProfileHigh},
	{0x64, newBitPattern("00001100"), ProfileConstrainedHigh},
}

// ParseProfileLevelId parses a profile-level-id written as 3 hex bytes. It returns nil
// when the string is not a recognized H264 profile level id.
func ParseProfileLevelId(str string) *ProfileLevelId {
	if len(str) != 6 {
		return nil
	}
	numeric, err := strconv.ParseUint(str, 16, 32)
	if err != nil || numeric == 0 {
		return nil
	}
	levelIdc := byte(numeric & 0xFF)
	profileIop := byte(numeric >> 8 & 0xFF)
	profileIdc := byte(numeric >> 16 & 0xFF)

	var level Level

	switch l := Level(levelIdc); l {
	case Level11:
		if profileIop&constraintSet3Flag != 0 {
			level = Level1b
		} else {
			level = Level11
		}
	case Level1, Level12, Level13, Level2, Level21, Level22,
		Level3, Level31, Level32, Level4, Level41, Level42,
		Level5, Level51, Level52:
		level = l
	default:
		return nil
	}

	for _, pattern := range profilePatterns {
		if profileIdc == pattern.profileIdc && pattern.profileIop.isMatch(profileIop) {
			return &ProfileLevelId{Profile: pattern.profile, Level: level}
		}
	}

	return nil
}

// ParseSdpProfileLevelId is like ParseProfileLevelId but falls back to
// DefaultProfileLevelId for an empty string.
func ParseSdpProfileLevelId(str string) *ProfileLevelId {
	if len(str) == 0 {
		profileLevelId := DefaultProfileLevelId
		return &profileLevelId
	}
	return ParseProfileLevelId(str)
}

// IsSameProfile reports whether both profile-level-id values name the same profile.
func IsSameProfile(str1, str2 string) bool {
	p1 := ParseSdpProfileLevelId(str1)
	p2 := ParseSdpProfileLevelId(str2)

	return p1 != nil && p2 != nil && p1.Profile == p2.Profile
}

// Params are the H264 fmtp parameters relevant to codec matching.
type Params struct {
	PacketizationMode     int
	ProfileLevelId        string
	LevelAsymmetryAllowed int
}

// GenerateProfileLevelIdForAnswer computes the profile-level-id to put in an answer
// given the locally supported and the remotely offered parameters. Both must carry
// the same profile; only the level is negotiated. It returns "" when neither side
// states a profile-level-id.
func GenerateProfileLevelIdForAnswer(local, remote Params) (string, error) {
	if len(local.ProfileLevelId) == 0 && len(remote.ProfileLevelId) == 0 {
		return "", nil
	}

	localProfileLevelId := ParseSdpProfileLevelId(local.ProfileLevelId)
	remoteProfileLevelId := ParseSdpProfileLevelId(remote.ProfileLevelId)

	if localProfileLevelId == nil {
		return "", ErrInvalidLocalProfileLevelId
	}
	if remoteProfileLevelId == nil {
		return "", ErrInvalidRemoteProfileLevelId
	}
	if localProfileLevelId.Profile != remoteProfileLevelId.Profile {
		return "", ErrProfileMismatch
	}

	levelAsymmetryAllowed := local.LevelAsymmetryAllowed > 0 && remote.LevelAsymmetryAllowed > 0

	// Without level asymmetry the answer may not upgrade the offered level.
	answerLevel := minLevel(localProfileLevelId.Level, remoteProfileLevelId.Level)
	if levelAsymmetryAllowed {
		answerLevel = localProfileLevelId.Level
	}

	return ProfileLevelId{Profile: localProfileLevelId.Profile, Level: answerLevel}.String(), nil
}

// byteMaskString sets the bits at the positions of c in an 8 character string.
// For example c = 'x', str = "x1xx0000" gives 0b10110000.
func byteMaskString(c byte, str string) (mask byte) {
	length := len(str)

	for i := 0; i < length; i++ {
		if str[i] == c {
			mask |= 1 << uint(length-1-i)
		}
	}

	return
}

func isLessLevel(a, b Level) bool {
	if a == Level1b {
		return b != Level1 && b != Level1b
	}
	if b == Level1b {
		return a != Level1
	}
	return a < b
}

func minLevel(a, b Level) Level {
	if isLessLevel(a, b) {
		return a
	}
	return b
}
