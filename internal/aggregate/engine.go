package aggregate

import (
	"sort"
	"time"

	"github.com/aiusage/disclosure/internal/declarations"
	"github.com/aiusage/disclosure/internal/retention"
)

type bucketKey struct {
	course     string
	assignment string
	month      string
	category   declarations.Category
	frequency  declarations.Frequency
}

// Compute applies the consent, expiry and enrolment filters, gates the result
// on cohort size and groups the surviving declarations. It never fails: an
// empty or small cohort is reported as suppressed, as is a result whose every
// bucket fell below Options.BucketMinimum.
func Compute(in Input, minCohort int) Result {
	if minCohort < 1 {
		minCohort = 1
	}

	survivors := make([]Record, 0, len(in.Records))
	cohort := make(map[string]struct{})
	var validUntil time.Time
	for _, rec := range in.Records {
		if !in.Enrolled[rec.CourseID][rec.StudentID] {
			continue
		}
		if in.Revoked[rec.CourseID][rec.StudentID] {
			continue
		}
		if retention.Expired(rec.ExpiresAt, in.Now) {
			continue
		}
		survivors = append(survivors, rec)
		cohort[rec.StudentID] = struct{}{}
		if validUntil.IsZero() || rec.ExpiresAt.Before(validUntil) {
			validUntil = rec.ExpiresAt
		}
	}

	if len(cohort) < minCohort {
		return suppressed(len(cohort), validUntil)
	}

	counts := make(map[bucketKey]int)
	for _, rec := range survivors {
		key := bucketKey{course: rec.CourseID, frequency: rec.Frequency}
		if in.Scope.Kind == ScopeCourse {
			key.assignment = rec.AssignmentID
		}
		if in.Options.ByMonth {
			key.month = rec.SubmittedAt.UTC().Format("2006-01")
		}
		seen := make(map[declarations.Category]struct{}, len(rec.Categories))
		for _, c := range rec.Categories {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			k := key
			k.category = c
			counts[k]++
		}
	}

	buckets := make([]Bucket, 0, len(counts))
	for k, n := range counts {
		if n == 0 {
			continue
		}
		if in.Options.BucketMinimum > 0 && n < in.Options.BucketMinimum {
			continue
		}
		b := Bucket{
			CourseID:         k.course,
			AssignmentID:     k.assignment,
			Month:            k.month,
			Category:         k.category,
			Frequency:        k.frequency,
			DeclarationCount: n,
		}
		if in.Scope.Kind == ScopeFaculty {
			b.FacultyID = in.Scope.ID
		}
		buckets = append(buckets, b)
	}
	if len(buckets) == 0 {
		return suppressed(len(cohort), validUntil)
	}
	sortBuckets(buckets)

	return Result{Buckets: buckets, CohortSize: len(cohort), ValidUntil: validUntil}
}

func suppressed(cohort int, validUntil time.Time) Result {
	return Result{Suppressed: true, Message: SuppressedMessage, CohortSize: cohort, ValidUntil: validUntil}
}

// sortBuckets orders by course, assignment, month, then category and
// frequency in their fixed ranks.
func sortBuckets(buckets []Bucket) {
	sort.Slice(buckets, func(i, j int) bool {
		a, b := buckets[i], buckets[j]
		if a.CourseID != b.CourseID {
			return a.CourseID < b.CourseID
		}
		if a.AssignmentID != b.AssignmentID {
			return a.AssignmentID < b.AssignmentID
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		if ra, rb := a.Category.Rank(), b.Category.Rank(); ra != rb {
			return ra < rb
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if ra, rb := a.Frequency.Rank(), b.Frequency.Rank(); ra != rb {
			return ra < rb
		}
		return a.Frequency < b.Frequency
	})
}
