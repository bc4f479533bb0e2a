package store

import "context"

// TruncateForTest clears both data tables.
func TruncateForTest(ctx context.Context, s *Store) error {
	for _, table := range []string{"videos", "quota_accounts"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}
