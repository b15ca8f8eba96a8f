package mqtt

import "strings"

// Topic prefixes.
const (
	TopicPrefix        = "portal"
	TopicPrefixSystem  = TopicPrefix + "/system"
	TopicPrefixSync    = TopicPrefix + "/sync"
	TopicPrefixCommand = TopicPrefix + "/command"
)

// Topics builds portal topic names.
//
//	mqtt.Topics{}.SyncResult("sync_devices") // portal/sync/sync_devices/result
type Topics struct{}

// SystemStatus is the retained online/offline status topic, also used for the LWT.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// SyncResult is where the result of each execution of job is published.
func (Topics) SyncResult(job string) string {
	return TopicPrefixSync + "/" + job + "/result"
}

// AllSyncResults matches every job's result topic.
func (Topics) AllSyncResults() string {
	return TopicPrefixSync + "/+/result"
}

// SyncCommand is the topic that triggers job.
func (Topics) SyncCommand(job string) string {
	return TopicPrefixCommand + "/sync/" + job
}

// AllSyncCommands matches every sync command topic.
func (Topics) AllSyncCommands() string {
	return TopicPrefixCommand + "/sync/+"
}

// ParseSyncCommand extracts the job name from a sync command topic.
func (Topics) ParseSyncCommand(topic string) (string, bool) {
	job, ok := strings.CutPrefix(topic, TopicPrefixCommand+"/sync/")
	if !ok || job == "" || strings.Contains(job, "/") {
		return "", false
	}
	return job, true
}
