package collections

import (
	"context"
	"path"
	"strconv"
	"strings"

	"schoolmaps/internal/pkg/wire"
)

// RecentFilesLimit is the size of the home feed.
const RecentFilesLimit = 5

// SubjectFilesQuery lists the caller's files of one subject, newest first.
func SubjectFilesQuery(subject string) wire.Query {
	return wire.Query{
		Collection: FilesCollection,
		Filters:    []wire.Filter{{Field: "subject", Value: subject}},
		OrderBy:    "createdAt",
		Desc:       true,
	}
}

// RecentFilesQuery is the home feed: the caller's newest files across all subjects.
func RecentFilesQuery() wire.Query {
	return wire.Query{
		Collection: FilesCollection,
		OrderBy:    "createdAt",
		Desc:       true,
		Limit:      RecentFilesLimit,
	}
}

// SearchFiles filters files by a case-insensitive match on title or description.
func SearchFiles(files []File, term string) []File {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return files
	}

	var out []File
	for _, f := range files {
		if strings.Contains(strings.ToLower(f.Title), term) ||
			strings.Contains(strings.ToLower(f.Description), term) {
			out = append(out, f)
		}
	}
	return out
}

// FileUpload is a new file for a subject.
type FileUpload struct {
	Subject     string
	Title       string
	Description string
	Name        string
	Data        []byte
}

// AddFile uploads the blob and records it. A failed record removes the blob again.
func (s *Service) AddFile(ctx context.Context, o Owner, in FileUpload) (File, error) {
	if err := s.allowed(o); err != nil {
		return File{}, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return File{}, s.invalid("error_enter_file_title")
	}
	name := path.Base(strings.ReplaceAll(in.Name, "\\", "/"))
	if len(in.Data) == 0 || name == "." || name == "/" || strings.TrimSpace(in.Subject) == "" {
		return File{}, s.invalid("error_select_file")
	}

	now := s.now()
	storagePath := path.Join("files", o.UID, in.Subject, strconv.FormatInt(now.UnixMilli(), 10)+"-"+name)

	url, err := s.blobs.Put(ctx, storagePath, in.Data)
	if err != nil {
		return File{}, s.failed("upload file", err)
	}

	f := File{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Subject:     in.Subject,
		OwnerID:     o.UID,
		CreatedAt:   stamp(now),
		FileURL:     url,
		StoragePath: storagePath,
	}
	data, err := fields(f)
	if err != nil {
		return File{}, s.failed("encode file", err)
	}

	f.ID, err = s.store.Create(ctx, FilesCollection, data)
	if err != nil {
		if delErr := s.blobs.Delete(ctx, storagePath); delErr != nil {
			s.logger.Warn().Err(delErr).Str("path", storagePath).Msg("removing orphaned blob failed")
		}
		return File{}, s.failed("record file", err)
	}

	s.notify("success_file_added", nil)
	return f, nil
}

// DeleteFiles removes each file's blob and then its record.
func (s *Service) DeleteFiles(ctx context.Context, o Owner, ids []string) error {
	if err := s.allowed(o); err != nil {
		return err
	}
	if len(ids) == 0 {
		return s.invalid("error_select_files_delete")
	}

	for _, id := range ids {
		doc, ok, err := s.store.Get(ctx, FilesCollection, id)
		if err != nil {
			return s.failed("read file", err)
		}
		if !ok {
			continue
		}

		var f File
		if err := doc.Decode(&f); err != nil {
			return s.failed("decode file", err)
		}
		if f.StoragePath != "" {
			if err := s.blobs.Delete(ctx, f.StoragePath); err != nil {
				return s.failed("delete blob", err)
			}
		}
		if err := s.store.Delete(ctx, FilesCollection, id); err != nil {
			return s.failed("delete file", err)
		}
	}

	s.notify("success_files_deleted", nil)
	return nil
}
