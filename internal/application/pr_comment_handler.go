package application

import (
	"context"
	"fmt"
)

type commentOutcome struct {
	id      int64
	url     string
	deleted int
}

// upsertComment posts body according to mode. Earlier comments are looked up
// by the rendered header before anything is written.
func (s *Service) upsertComment(ctx context.Context, client HostClient, pr PullRequest, mode CommentMode, label, body string) (commentOutcome, error) {
	if mode == CommentInsert {
		return s.createComment(ctx, client, pr, body)
	}

	comments, err := client.ListComments(ctx, pr.Repo, pr.Number)
	if err != nil {
		return commentOutcome{}, fmt.Errorf("list comments: %w", err)
	}
	var existing []Comment
	for _, c := range comments {
		if s.Renderer.Matches(c.Body, label) {
			existing = append(existing, c)
		}
	}

	switch mode {
	case CommentUpdate:
		if len(existing) == 0 {
			return s.createComment(ctx, client, pr, body)
		}
		target := existing[0]
		s.logger().Debug("updating comment", "id", target.ID)
		if err := client.UpdateComment(ctx, pr.Repo, pr.Number, target.ID, body); err != nil {
			return commentOutcome{}, fmt.Errorf("update comment: %w", err)
		}
		return commentOutcome{id: target.ID, url: target.URL}, nil
	case CommentReplace, "":
		for _, c := range existing {
			s.logger().Debug("deleting comment", "id", c.ID)
			if err := client.DeleteComment(ctx, pr.Repo, pr.Number, c.ID); err != nil {
				return commentOutcome{}, fmt.Errorf("delete comment: %w", err)
			}
		}
		outcome, err := s.createComment(ctx, client, pr, body)
		outcome.deleted = len(existing)
		return outcome, err
	default:
		return commentOutcome{}, fmt.Errorf("%w %q", ErrInvalidCommentMode, mode)
	}
}

func (s *Service) createComment(ctx context.Context, client HostClient, pr PullRequest, body string) (commentOutcome, error) {
	s.logger().Debug("creating comment", "repo", pr.Repo.FullName(), "number", pr.Number)
	created, err := client.CreateComment(ctx, pr.Repo, pr.Number, body)
	if err != nil {
		return commentOutcome{}, fmt.Errorf("create comment: %w", err)
	}
	return commentOutcome{id: created.ID, url: created.URL}, nil
}
