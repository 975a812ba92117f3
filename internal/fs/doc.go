// Package fs provides the small file-system trait used by the index for
// reads, writes, renames and write locks, plus fault injection for tests.
//
// # Implementations
//
//   - [LocalFS]: Production implementation using the os package and
//     flock(2) (LockFileEx on Windows) for [FileSystem.TryLock]
//   - [FaultyFS]: wraps another FileSystem and fails injected operations
//
// # Usage
//
// Production code should use fs.Default (which is [LocalFS]):
//
//	lock, err := fs.Default.TryLock(path + ".lock")
//	if errors.Is(err, fs.ErrLocked) { ... }
//	defer lock.Close()
//
// Tests pass a [FaultyFS] to fail chosen operations:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.Inject(".tmp", fs.Fault{Ops: fs.OpSync})
//
// Operations take no context.Context: local file calls are not
// interruptible at the syscall level. Remote objects go through the
// blobstore package, which is context aware.
package fs
