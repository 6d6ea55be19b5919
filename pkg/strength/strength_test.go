package strength

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeEmpty(t *testing.T) {
	a := Analyze("")
	assert.Equal(t, 0, a.Score)
	assert.Equal(t, GradeVeryWeak, a.Grade)
	assert.Equal(t, "instant", a.CrackTime)
	assert.NotEmpty(t, a.Issues)
}

func TestAnalyzeCommonPasswords(t *testing.T) {
	for _, pw := range []string{"password", "123456", "qwerty", "iloveyou"} {
		t.Run(pw, func(t *testing.T) {
			a := Analyze(pw)
			assert.LessOrEqual(t, a.Score, 25, "common password %q must grade very weak or weak", pw)
			assert.Contains(t, a.Issues, "matches a well-known common password")
		})
	}
}

func TestAnalyzeStrongPassword(t *testing.T) {
	// 32 characters, all four classes, no patterns, no repeats.
	a := Analyze("kT9#mW2$pQ7!xZ4@vB6%nJ3^fH8&gL5*")
	assert.GreaterOrEqual(t, a.Score, 90)
	assert.Equal(t, GradeExcellent, a.Grade)
	assert.Equal(t, 4, a.Complexity)
	assert.Greater(t, a.Entropy, 100.0)
}

func TestAnalyzeGrades(t *testing.T) {
	cases := []struct {
		score int
		grade string
	}{
		{95, GradeExcellent},
		{80, GradeVeryStrong},
		{65, GradeStrong},
		{50, GradeMedium},
		{30, GradeWeak},
		{10, GradeVeryWeak},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.grade, gradeFor(tc.score), "score %d", tc.score)
	}
}

func TestAnalyzeWeakPatterns(t *testing.T) {
	cases := []struct {
		name     string
		password string
	}{
		{"repeated run", "aaaX9$bcdQ"},
		{"sequential digits", "x9K$1234zW"},
		{"sequential letters", "9K$defQw7!"},
		{"keyboard walk", "Qwerty55$X"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, hasWeakPattern(tc.password), "expected weak pattern in %q", tc.password)
		})
	}

	assert.False(t, hasWeakPattern("kT9#mW2$pQ"), "no weak pattern expected")
}

func TestAnalyzeDiversityPenalty(t *testing.T) {
	// Mostly repeated characters keep the diversity ratio under 0.5.
	low := Analyze("aXaXaXaXaXaX")
	assert.Contains(t, low.Issues, "too many repeated characters")
}

func TestAnalyzeCountsRunesNotBytes(t *testing.T) {
	// Ten runes, twenty bytes. Byte counting would land this in the
	// twenty-character length tier.
	repeated := strings.Repeat("ü", 10)
	a := Analyze(repeated)
	assert.Equal(t, 10, a.Length)
	assert.Contains(t, a.Issues, "too many repeated characters")
	assert.InDelta(t, 0.1, a.Diversity, 1e-9)

	// A mixed-script password is measured by its rune count, not by how
	// many bytes its encoding takes.
	mixed := Analyze("пароль秘密9#")
	assert.Equal(t, 10, mixed.Length)
	assert.NotContains(t, mixed.Issues, "too many repeated characters")
}

func TestAnalyzeDeterministic(t *testing.T) {
	a1 := Analyze("correct-horse-battery-staple")
	a2 := Analyze("correct-horse-battery-staple")
	assert.Equal(t, a1, a2)
}

// TestScoreNonDecreasingInLength exercises the length-monotonicity property:
// for prefix pairs of the same random string where every other scoring factor
// is identical, a longer password never scores lower.
func TestScoreNonDecreasingInLength(t *testing.T) {
	const charset = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789#$%&"
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		var sb strings.Builder
		for i := 0; i < 40; i++ {
			sb.WriteByte(charset[rng.Intn(len(charset))])
		}
		s := sb.String()

		for n := 8; n < len(s); n++ {
			shorter := Analyze(s[:n])
			longer := Analyze(s[:n+1])

			// Hold the other factors fixed: same class mix, same penalty
			// profile, same diversity bucket.
			if shorter.Complexity != longer.Complexity {
				continue
			}
			if diversityBucket(shorter.Diversity) != diversityBucket(longer.Diversity) {
				continue
			}
			if !sameIssueProfile(shorter.Issues, longer.Issues) {
				continue
			}

			assert.GreaterOrEqual(t, longer.Score, shorter.Score,
				"score dropped when extending %q to %q", s[:n], s[:n+1])
		}
	}
}

func diversityBucket(d float64) int {
	switch {
	case d > 0.8:
		return 2
	case d < 0.5:
		return 0
	default:
		return 1
	}
}

func sameIssueProfile(a, b []string) bool {
	strip := func(issues []string) []string {
		var out []string
		for _, is := range issues {
			if !strings.HasPrefix(is, "password is too short") {
				out = append(out, is)
			}
		}
		return out
	}
	sa, sb := strip(a), strip(b)
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func TestEstimateCrackTime(t *testing.T) {
	assert.Equal(t, "instant", estimateCrackTime(0))
	assert.Equal(t, "less than a second", estimateCrackTime(10))
	assert.Contains(t, estimateCrackTime(40), "minutes")
	assert.Equal(t, "billions of years", estimateCrackTime(200))
}
