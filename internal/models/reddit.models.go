package models

import "time"

// Post is a discussion item returned by the content source. Its title is the
// headline used as the lookup key everywhere else.
type Post struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Subreddit   string    `json:"subreddit"`
	Author      string    `json:"author"`
	Permalink   string    `json:"permalink"`
	Upvotes     int       `json:"upvotes"`
	NumComments int       `json:"num_comments"`
	Stickied    bool      `json:"stickied"`
	CreatedAt   time.Time `json:"created_at"`
}

// Comment is a flattened top-level comment. Read-only input to the sentiment pipeline.
type Comment struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

type RedditAPIResponse struct {
	Kind string        `json:"kind"`
	Data RedditAPIData `json:"data"`
}

type RedditAPIData struct {
	After    string           `json:"after"`
	Children []RedditAPIChild `json:"children"`
}

type RedditAPIChild struct {
	Kind string             `json:"kind"`
	Data RedditAPIChildData `json:"data"`
}

// RedditAPIChildData covers both link (t3) and comment (t1) payloads.
type RedditAPIChildData struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Subreddit   string  `json:"subreddit"`
	Author      string  `json:"author"`
	Title       string  `json:"title"`
	Body        string  `json:"body"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	Ups         int     `json:"ups"`
	NumComments int     `json:"num_comments"`
	Stickied    bool    `json:"stickied"`
	CreatedUTC  float64 `json:"created_utc"`
}
