package schema

import "github.com/driftline/reddit-ingest/internal/model"

// Deleted-actor sentinels. Responses use these in place of a username when
// the account no longer exists; no User stub is emitted for them.
var actorSentinels = map[string]bool{
	"[deleted]": true,
	"[removed]": true,
}

// actorStub returns a minimal User entity for an embedded author username,
// or nil when the author is absent or a deleted-actor sentinel.
func actorStub(author string, activityFlag string) model.Entity {
	if author == "" || actorSentinels[author] {
		return nil
	}
	return model.Entity{
		"username":   author,
		activityFlag: true,
	}
}

func decomposeUser(resp map[string]any) model.EntitySet {
	set := model.NewEntitySet()
	set.Add(model.KindUser, model.Entity(resp))
	return set
}

func decomposeTopPosts(resp map[string]any) model.EntitySet {
	set := model.NewEntitySet()

	posts, _ := resp["posts"].([]any)

	// Container enrichment: one community summary carrying the parent
	// identifier and the item count.
	set.Add(model.KindCommunity, model.Entity{
		"name":        resp["subreddit"],
		"time_filter": resp["time_filter"],
		"post_count":  len(posts),
	})

	for _, p := range posts {
		post, ok := p.(map[string]any)
		if !ok {
			continue
		}
		set.Add(model.KindPost, model.Entity(post))

		author, _ := post["author"].(string)
		if stub := actorStub(author, "post_activity"); stub != nil {
			set.Add(model.KindUser, stub)
		}
	}
	return set
}

func decomposeCommunity(resp map[string]any) model.EntitySet {
	set := model.NewEntitySet()
	set.Add(model.KindCommunity, model.Entity(resp))
	return set
}

func decomposeTrending(resp map[string]any) model.EntitySet {
	set := model.NewEntitySet()

	subs, _ := resp["subreddits"].([]any)
	for _, s := range subs {
		sub, ok := s.(map[string]any)
		if !ok {
			continue
		}
		entity := make(model.Entity, len(sub)+1)
		for k, v := range sub {
			entity[k] = v
		}
		entity["is_trending"] = true
		set.Add(model.KindCommunity, entity)
	}
	return set
}

func decomposeSubmission(resp map[string]any) model.EntitySet {
	set := model.NewEntitySet()
	set.Add(model.KindSubmission, model.Entity(resp))

	author, _ := resp["author"].(string)
	if stub := actorStub(author, "submission_activity"); stub != nil {
		set.Add(model.KindUser, stub)
	}

	set.Add(model.KindCommunity, model.Entity{
		"name":                resp["subreddit"],
		"submission_activity": true,
	})
	return set
}
