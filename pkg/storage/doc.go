// Package storage writes export files below an output root.
//
// The Manager type is the only writer. Every save:
//   - rejects names that are not portable (reserved device names, trailing
//     dots, illegal characters, over-long components) with ErrorTypeInvalidFilename
//   - writes to a temporary file in the target directory and renames it into place
//   - never overwrites; a taken name becomes "name (1).ext", "name (2).ext"
//
// Usage:
//
//	manager, err := storage.NewManager("kidsnote-export", client, log)
//	if err != nil {
//	    return err
//	}
//	path, err := manager.SaveURL(ctx, "albums/2024-10-05 Picnic/photos/001.jpg", photoURL)
package storage
