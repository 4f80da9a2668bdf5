package gitlab

import "github.com/gitlab-lookup/gitlab-lookup/internal/cache"

// IssuesQuery lists the open issues of a project, newest first.
const IssuesQuery = `
query($project: ID!, $after: String) {
  project(fullPath: $project) {
    issues(state: opened, sort: CREATED_DESC, first: 100, after: $after) {
      nodes {
        iid
        title
        webUrl
        createdAt
        description
        author { name username }
        assignees { nodes { name username } }
        labels { nodes { title } }
      }
      pageInfo { hasNextPage endCursor }
    }
  }
}`

// MergeRequestsQuery lists the open merge requests of a project, newest first.
const MergeRequestsQuery = `
query($project: ID!, $after: String) {
  project(fullPath: $project) {
    mergeRequests(state: opened, sort: CREATED_DESC, first: 100, after: $after) {
      nodes {
        iid
        title
        webUrl
        createdAt
        description
        author { name username }
        labels { nodes { title } }
      }
      pageInfo { hasNextPage endCursor }
    }
  }
}`

// QueryFingerprint identifies the shape of a request. Cached results of a
// different query text or project never satisfy it.
func QueryFingerprint(query, project string) cache.Fingerprint {
	return cache.NewFingerprint(query, project)
}
