package main

import (
	"uninotes/pkg/errors"
	"uninotes/pkg/models"
)

func displayName(u models.User) string {
	if name := u.FullName(); name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

func userMessage(err error) string {
	if err == nil {
		return ""
	}
	return errors.UserMessage(err)
}
