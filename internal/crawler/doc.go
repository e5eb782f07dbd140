// Package crawler implements the crawl orchestration engine: the URL
// frontier, content deduplication, the bounded-concurrency dispatcher, and
// the level-synchronous controller that drives a crawl run.
package crawler
