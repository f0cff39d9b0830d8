package quoteserver

import (
	"strconv"

	"github.com/c0deZ3R0/quotesync/transport/remote"
)

var seedTitles = []string{
	"The best way to get started is to quit talking and begin doing.",
	"Don't let yesterday take up too much of today.",
	"It's not whether you get knocked down, it's whether you get up.",
	"If you are working on something exciting, it will keep you motivated.",
	"Success is not final, failure is not fatal.",
	"Knowing is not enough; we must apply.",
	"Imagination is more important than knowledge.",
	"Life is what happens when you're busy making other plans.",
	"Whoever is happy will make others happy too.",
	"In the middle of difficulty lies opportunity.",
	"The purpose of our lives is to be happy.",
	"Get busy living or get busy dying.",
}

// SeedPosts returns the default post list served by a new Server.
func SeedPosts() []remote.Post {
	posts := make([]remote.Post, 0, len(seedTitles))
	for i, title := range seedTitles {
		posts = append(posts, remote.Post{
			UserID: 1 + i/5,
			ID:     remote.PostID(strconv.Itoa(i + 1)),
			Title:  title,
			Body:   "quote",
		})
	}
	return posts
}
