package client

import (
	"net/url"
	"strconv"

	"github.com/Gee2424/HubFreelance-sub001/internal/cache"
)

// Resource paths.
const (
	pathMe         = "/api/auth/me"
	pathUsers      = "/api/users"
	pathJobs       = "/api/jobs"
	pathProposals  = "/api/proposals"
	pathMessages   = "/api/messages"
	pathTickets    = "/api/tickets"
	pathActivities = "/api/activities"
)

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func MeKey() cache.Key { return cache.NewKey(pathMe, nil) }

func UsersKey() cache.Key { return cache.NewKey(pathUsers, nil) }

func UserKey(id int64) cache.Key { return cache.NewKey(pathUsers+"/"+itoa(id), nil) }

// JobsKey is the key of a server-filtered job list.
func JobsKey(q JobQuery) cache.Key { return cache.NewKey(pathJobs, q.values()) }

func JobKey(id int64) cache.Key { return cache.NewKey(pathJobs+"/"+itoa(id), nil) }

// ProposalsKey lists proposals of jobID, or every visible proposal for 0.
func ProposalsKey(jobID int64) cache.Key {
	q := url.Values{}
	if jobID != 0 {
		q.Set("jobId", itoa(jobID))
	}
	return cache.NewKey(pathProposals, q)
}

// InboxKey is every message involving the current user. Conversation lists
// are derived from it.
func InboxKey() cache.Key { return cache.NewKey(pathMessages, nil) }

// ThreadKey is the message list exchanged with counterpartID.
func ThreadKey(counterpartID int64) cache.Key {
	return cache.NewKey(pathMessages+"/"+itoa(counterpartID), nil)
}

func ActivitiesKey(limit int) cache.Key {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return cache.NewKey(pathActivities, q)
}

func TicketsKey() cache.Key { return cache.NewKey(pathTickets, nil) }
