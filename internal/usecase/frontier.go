package usecase

// CrawlState is the frontier of one crawl: a FIFO queue plus the set of
// URLs ever enqueued. It is owned by a single goroutine and is not safe for
// concurrent use.
type CrawlState struct {
	queue   []string
	head    int
	seen    map[string]struct{}
	visited map[string]struct{}
}

// NewCrawlState returns an empty frontier.
func NewCrawlState() *CrawlState {
	return &CrawlState{
		seen:    make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
}

// Enqueue appends url unless it was enqueued before. It reports whether the
// URL was added.
func (s *CrawlState) Enqueue(url string) bool {
	if _, ok := s.seen[url]; ok {
		return false
	}
	s.seen[url] = struct{}{}
	s.queue = append(s.queue, url)
	return true
}

// Peek returns the earliest enqueued URL without removing it.
func (s *CrawlState) Peek() (string, bool) {
	if s.head >= len(s.queue) {
		return "", false
	}
	return s.queue[s.head], true
}

// Next removes and returns the earliest enqueued URL.
func (s *CrawlState) Next() (string, bool) {
	url, ok := s.Peek()
	if !ok {
		return "", false
	}
	s.queue[s.head] = ""
	s.head++
	// Reclaim the consumed prefix once it dominates the backing array.
	if s.head > 1024 && s.head*2 > len(s.queue) {
		s.queue = append([]string(nil), s.queue[s.head:]...)
		s.head = 0
	}
	return url, true
}

// MarkVisited records url as dispatched.
func (s *CrawlState) MarkVisited(url string) {
	s.visited[url] = struct{}{}
}

// Visited reports whether url was dispatched.
func (s *CrawlState) Visited(url string) bool {
	_, ok := s.visited[url]
	return ok
}

// Seen reports whether url was ever enqueued.
func (s *CrawlState) Seen(url string) bool {
	_, ok := s.seen[url]
	return ok
}

// Len returns the number of queued, undispatched URLs.
func (s *CrawlState) Len() int {
	return len(s.queue) - s.head
}

// VisitedCount returns the number of dispatched URLs.
func (s *CrawlState) VisitedCount() int {
	return len(s.visited)
}
