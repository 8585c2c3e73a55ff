package main

// Version is bumped by hand at release time. ReleaseDate is that of the last commit.
const (
	Version     = "v1.2.0"
	ReleaseDate = "2024-06-08"
)
