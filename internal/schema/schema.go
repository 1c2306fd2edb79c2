// Package schema declares, per named operation, the expected shape of its
// response and the decomposition of a validated response into typed
// entities. The registry is the single source of truth for which
// operations the pipeline understands.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/driftline/reddit-ingest/internal/model"
)

// DecomposeFunc turns a validated response object into an entity set.
// Implementations are pure: no I/O, no mutation of the input.
type DecomposeFunc func(resp map[string]any) model.EntitySet

// Schema pairs an operation's expected response shape with its
// decomposition rule.
type Schema struct {
	Operation string
	doc       *gojsonschema.Schema
	decompose DecomposeFunc
}

// registry maps operation names to their schemas. Adding an operation is
// additive: declare its shape document, write its decompose func, add an
// entry here.
var registry = map[string]*Schema{
	"get_user_info":           newSchema("get_user_info", userInfoDoc, decomposeUser),
	"who_am_i":                newSchema("who_am_i", whoAmIDoc, decomposeUser),
	"get_top_posts":           newSchema("get_top_posts", topPostsDoc, decomposeTopPosts),
	"get_subreddit_info":      newSchema("get_subreddit_info", subredditInfoDoc, decomposeCommunity),
	"get_subreddit_stats":     newSchema("get_subreddit_stats", subredditInfoDoc, decomposeCommunity),
	"get_trending_subreddits": newSchema("get_trending_subreddits", trendingDoc, decomposeTrending),
	"get_submission_by_url":   newSchema("get_submission_by_url", submissionInfoDoc, decomposeSubmission),
	"get_submission_by_id":    newSchema("get_submission_by_id", submissionInfoDoc, decomposeSubmission),
}

func newSchema(operation, doc string, fn DecomposeFunc) *Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("schema: compile %s: %v", operation, err))
	}
	return &Schema{Operation: operation, doc: compiled, decompose: fn}
}

// For returns the schema registered for the given operation, or false if
// the operation is unknown.
func For(operation string) (*Schema, bool) {
	s, ok := registry[operation]
	return s, ok
}

// Operations returns the names of all registered operations.
func Operations() []string {
	ops := make([]string, 0, len(registry))
	for op := range registry {
		ops = append(ops, op)
	}
	return ops
}

// Validate checks raw response bytes against the schema's shape document.
// A non-nil error describes every violated constraint.
func (s *Schema) Validate(raw []byte) error {
	result, err := s.doc.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("response is not valid JSON: %v", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, desc.Description()))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}

// Decompose invokes the operation's decomposition rule on a validated
// response object.
func (s *Schema) Decompose(resp map[string]any) model.EntitySet {
	return s.decompose(resp)
}
