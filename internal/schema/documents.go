package schema

// Shape documents for registered operations, expressed as JSON Schema.
// Required lists cover the fields every well-formed response carries;
// optional and nullable fields are typed but not required, since upstream
// responses drift. additionalProperties stays open for the same reason.

const userInfoDoc = `{
	"type": "object",
	"required": ["username", "created_utc", "comment_karma", "link_karma", "total_karma"],
	"properties": {
		"username":                  {"type": "string", "minLength": 1},
		"created_utc":               {"type": "number"},
		"comment_karma":             {"type": "integer"},
		"link_karma":                {"type": "integer"},
		"total_karma":               {"type": "integer"},
		"has_verified_email":        {"type": "boolean"},
		"is_mod":                    {"type": "boolean"},
		"is_gold":                   {"type": "boolean"},
		"has_subscribed":            {"type": "boolean"},
		"is_employee":               {"type": "boolean"},
		"over_18":                   {"type": "boolean"},
		"is_suspended":              {"type": "boolean"},
		"suspension_expiration_utc": {"type": ["number", "null"]},
		"subreddit":                 {"type": ["object", "null"]}
	}
}`

const whoAmIDoc = `{
	"type": "object",
	"required": ["id", "name", "created_utc", "comment_karma", "link_karma", "total_karma"],
	"properties": {
		"id":                 {"type": "string", "minLength": 1},
		"name":               {"type": "string", "minLength": 1},
		"created_utc":        {"type": "number"},
		"comment_karma":      {"type": "integer"},
		"link_karma":         {"type": "integer"},
		"total_karma":        {"type": "integer"},
		"awardee_karma":      {"type": "integer"},
		"awarder_karma":      {"type": "integer"},
		"has_verified_email": {"type": "boolean"},
		"is_employee":        {"type": "boolean"},
		"is_gold":            {"type": "boolean"},
		"is_mod":             {"type": "boolean"},
		"is_suspended":       {"type": "boolean"},
		"verified":           {"type": "boolean"},
		"has_subscribed":     {"type": "boolean"},
		"snoovatar_img":      {"type": "string"},
		"icon_img":           {"type": "string"},
		"subreddit":          {"type": ["object", "null"]},
		"metadata":           {"type": "object"}
	}
}`

const postItemDoc = `{
	"type": "object",
	"required": ["id", "title", "author", "score", "upvote_ratio", "num_comments", "created_utc", "is_self", "over_18", "spoiler"],
	"properties": {
		"id":            {"type": "string", "minLength": 1},
		"title":         {"type": "string"},
		"author":        {"type": "string"},
		"score":         {"type": "integer"},
		"upvote_ratio":  {"type": "number"},
		"num_comments":  {"type": "integer"},
		"created_utc":   {"type": "number"},
		"url":           {"type": ["string", "null"]},
		"permalink":     {"type": ["string", "null"]},
		"is_self":       {"type": "boolean"},
		"selftext":      {"type": ["string", "null"]},
		"link_url":      {"type": ["string", "null"]},
		"over_18":       {"type": "boolean"},
		"spoiler":       {"type": "boolean"},
		"stickied":      {"type": ["boolean", "null"]},
		"locked":        {"type": ["boolean", "null"]},
		"distinguished": {"type": ["string", "null"]},
		"flair":         {"type": ["object", "null"]}
	}
}`

const topPostsDoc = `{
	"type": "object",
	"required": ["subreddit", "time_filter", "posts", "metadata"],
	"properties": {
		"subreddit":   {"type": "string", "minLength": 1},
		"time_filter": {"type": "string"},
		"posts":       {"type": "array", "items": ` + postItemDoc + `},
		"metadata": {
			"type": "object",
			"required": ["fetched_at", "post_count"],
			"properties": {
				"fetched_at": {"type": "number"},
				"post_count": {"type": "integer"}
			}
		}
	}
}`

const subredditInfoDoc = `{
	"type": "object",
	"required": ["id", "display_name", "title", "subscribers", "created_utc"],
	"properties": {
		"id":                 {"type": "string", "minLength": 1},
		"display_name":       {"type": "string", "minLength": 1},
		"title":              {"type": "string"},
		"public_description": {"type": "string"},
		"description":        {"type": "string"},
		"subscribers":        {"type": "integer"},
		"active_user_count":  {"type": ["integer", "null"]},
		"created_utc":        {"type": "number"},
		"over18":             {"type": "boolean"},
		"submission_type":    {"type": "string"},
		"allow_images":       {"type": "boolean"},
		"allow_videos":       {"type": "boolean"},
		"allow_polls":        {"type": "boolean"},
		"spoilers_enabled":   {"type": "boolean"},
		"wikienabled":        {"type": "boolean"},
		"mod_permissions":    {"type": "array"},
		"metadata":           {"type": "object"}
	}
}`

const trendingDoc = `{
	"type": "object",
	"required": ["subreddits", "metadata"],
	"properties": {
		"subreddits": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["display_name", "title", "subscribers"],
				"properties": {
					"display_name":    {"type": "string", "minLength": 1},
					"title":           {"type": "string"},
					"subscribers":     {"type": "integer"},
					"trending_reason": {"type": ["string", "null"]}
				}
			}
		},
		"metadata": {"type": "object"}
	}
}`

const submissionInfoDoc = `{
	"type": "object",
	"required": ["id", "title", "author", "subreddit", "score", "upvote_ratio", "num_comments", "created_utc", "url", "permalink", "is_self"],
	"properties": {
		"id":            {"type": "string", "minLength": 1},
		"title":         {"type": "string"},
		"author":        {"type": "string"},
		"subreddit":     {"type": "string", "minLength": 1},
		"score":         {"type": "integer"},
		"upvote_ratio":  {"type": "number"},
		"num_comments":  {"type": "integer"},
		"created_utc":   {"type": "number"},
		"url":           {"type": "string"},
		"permalink":     {"type": "string"},
		"is_self":       {"type": "boolean"},
		"selftext":      {"type": "string"},
		"selftext_html": {"type": ["string", "null"]},
		"link_url":      {"type": "string"},
		"domain":        {"type": "string"},
		"over_18":       {"type": "boolean"},
		"spoiler":       {"type": "boolean"},
		"stickied":      {"type": "boolean"},
		"locked":        {"type": "boolean"},
		"archived":      {"type": "boolean"},
		"distinguished": {"type": ["string", "null"]},
		"flair":         {"type": ["object", "null"]},
		"media":         {"type": ["object", "null"]},
		"preview":       {"type": ["object", "null"]},
		"awards":        {"type": "array"},
		"metadata":      {"type": "object"}
	}
}`
