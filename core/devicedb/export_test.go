package devicedb

// SnapExec attempts a write through the snapshot handle.
func SnapExec(s *Snapshot) error {
	_, err := s.db.Exec(`DELETE FROM Books`)
	return err
}
