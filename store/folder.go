package store

import (
	"bytes"

	"github.com/TitusVM/safestore/crypto"
	"github.com/TitusVM/safestore/safeerr"
	"github.com/TitusVM/safestore/user"
)

// KeyedName is one entry of a folder's file_keys/folder_keys table: the
// child's name (as it appears at this level — plaintext in a plaintext
// folder, ciphertext in an encrypted one) paired with that child's
// (possibly wrapped) key.
type KeyedName struct {
	Name []byte
	Key  []byte
}

// Folder is SafeStore's recursive tree node. Files and Folders are stored
// as ordered slices; FileKeys/FolderKeys are parallel ordered slices
// indexed by child name, kept in step with Files/Folders by
// AddFile/AddFolder. Child names must be unique within a folder.
type Folder struct {
	Name  []byte
	Owner []byte

	Files   []File
	Folders []Folder

	FileKeys   []KeyedName
	FolderKeys []KeyedName

	Signature []byte
}

// NewFolder constructs an empty Folder.
func NewFolder(name, owner []byte) Folder {
	return Folder{Name: name, Owner: owner}
}

// AddFile appends a file and its per-file key, preserving insertion order.
// FileKeys is indexed by the child's current name.
func (f *Folder) AddFile(file File, key []byte) {
	f.FileKeys = append(f.FileKeys, KeyedName{Name: cloneBytes(file.Name), Key: key})
	f.Files = append(f.Files, file)
}

// AddFolder appends a subfolder and its per-folder key, mirroring AddFile.
func (f *Folder) AddFolder(folder Folder, key []byte) {
	f.FolderKeys = append(f.FolderKeys, KeyedName{Name: cloneBytes(folder.Name), Key: key})
	f.Folders = append(f.Folders, folder)
}

func findFileByName(files []File, name []byte) (File, bool) {
	for _, file := range files {
		if bytes.Equal(file.Name, name) {
			return file, true
		}
	}
	return File{}, false
}

func findFolderByName(folders []Folder, name []byte) (Folder, bool) {
	for _, folder := range folders {
		if bytes.Equal(folder.Name, name) {
			return folder, true
		}
	}
	return Folder{}, false
}

func findKeyByName(keys []KeyedName, name []byte) (KeyedName, bool) {
	for _, kv := range keys {
		if bytes.Equal(kv.Name, name) {
			return kv, true
		}
	}
	return KeyedName{}, false
}

// validate checks the structural invariants: FileKeys/FolderKeys must be
// the same length as Files/Folders, and every key-table entry must name an
// existing child.
func (f Folder) validate() error {
	if len(f.FileKeys) != len(f.Files) {
		return safeerr.NewStructuralInvariant("file_keys length does not match files length")
	}
	for _, kv := range f.FileKeys {
		if _, ok := findFileByName(f.Files, kv.Name); !ok {
			return safeerr.NewStructuralInvariant("file_keys entry names no file in this folder")
		}
	}
	if len(f.FolderKeys) != len(f.Folders) {
		return safeerr.NewStructuralInvariant("folder_keys length does not match folders length")
	}
	for _, kv := range f.FolderKeys {
		if _, ok := findFolderByName(f.Folders, kv.Name); !ok {
			return safeerr.NewStructuralInvariant("folder_keys entry names no folder in this folder")
		}
	}
	return nil
}

// SymEncrypt recursively transforms a plaintext folder into its ciphertext
// form under key, one key per level, wrapping each child's key into the
// parent. If isRoot, name is copied verbatim so the server can route by
// UUID; otherwise name is encrypted like every other field.
func (f Folder) SymEncrypt(key []byte, isRoot bool) (Folder, error) {
	if err := f.validate(); err != nil {
		return Folder{}, err
	}

	var name []byte
	var err error
	if isRoot {
		name = cloneBytes(f.Name)
	} else {
		name, err = crypto.SymEncrypt(key, f.Name)
		if err != nil {
			return Folder{}, err
		}
	}

	owner, err := crypto.SymEncrypt(key, f.Owner)
	if err != nil {
		return Folder{}, err
	}

	encFiles := make([]File, 0, len(f.FileKeys))
	encFileKeys := make([]KeyedName, 0, len(f.FileKeys))
	for _, kv := range f.FileKeys {
		child, ok := findFileByName(f.Files, kv.Name)
		if !ok {
			return Folder{}, safeerr.NewStructuralInvariant("file_keys entry names no file in this folder")
		}
		encChild, err := child.SymEncrypt(kv.Key)
		if err != nil {
			return Folder{}, err
		}
		wrapped, err := crypto.SymEncrypt(key, kv.Key)
		if err != nil {
			return Folder{}, err
		}
		encFiles = append(encFiles, encChild)
		encFileKeys = append(encFileKeys, KeyedName{Name: cloneBytes(encChild.Name), Key: wrapped})
	}

	encFolders := make([]Folder, 0, len(f.FolderKeys))
	encFolderKeys := make([]KeyedName, 0, len(f.FolderKeys))
	for _, kv := range f.FolderKeys {
		child, ok := findFolderByName(f.Folders, kv.Name)
		if !ok {
			return Folder{}, safeerr.NewStructuralInvariant("folder_keys entry names no folder in this folder")
		}
		encChild, err := child.SymEncrypt(kv.Key, false)
		if err != nil {
			return Folder{}, err
		}
		wrapped, err := crypto.SymEncrypt(key, kv.Key)
		if err != nil {
			return Folder{}, err
		}
		encFolders = append(encFolders, encChild)
		encFolderKeys = append(encFolderKeys, KeyedName{Name: cloneBytes(encChild.Name), Key: wrapped})
	}

	return Folder{
		Name:       name,
		Owner:      owner,
		Files:      encFiles,
		Folders:    encFolders,
		FileKeys:   encFileKeys,
		FolderKeys: encFolderKeys,
		Signature:  cloneBytes(f.Signature),
	}, nil
}

// SymDecrypt is the exact dual of SymEncrypt: for every ciphertext child,
// it first looks up and unwraps that child's key — the lookup key is the
// ciphertext child name — then decrypts the child with the recovered key.
func (f Folder) SymDecrypt(key []byte, isRoot bool) (Folder, error) {
	if err := f.validate(); err != nil {
		return Folder{}, err
	}

	var name []byte
	var err error
	if isRoot {
		name = cloneBytes(f.Name)
	} else {
		name, err = crypto.SymDecrypt(key, f.Name)
		if err != nil {
			return Folder{}, err
		}
	}

	owner, err := crypto.SymDecrypt(key, f.Owner)
	if err != nil {
		return Folder{}, err
	}

	decFiles := make([]File, 0, len(f.Files))
	decFileKeys := make([]KeyedName, 0, len(f.Files))
	for _, encChild := range f.Files {
		kv, ok := findKeyByName(f.FileKeys, encChild.Name)
		if !ok {
			return Folder{}, safeerr.NewStructuralInvariant("no file_keys entry for ciphertext file")
		}
		childKey, err := crypto.SymDecrypt(key, kv.Key)
		if err != nil {
			return Folder{}, err
		}
		decChild, err := encChild.SymDecrypt(childKey)
		if err != nil {
			return Folder{}, err
		}
		decFiles = append(decFiles, decChild)
		decFileKeys = append(decFileKeys, KeyedName{Name: cloneBytes(decChild.Name), Key: childKey})
	}

	decFolders := make([]Folder, 0, len(f.Folders))
	decFolderKeys := make([]KeyedName, 0, len(f.Folders))
	for _, encChild := range f.Folders {
		kv, ok := findKeyByName(f.FolderKeys, encChild.Name)
		if !ok {
			return Folder{}, safeerr.NewStructuralInvariant("no folder_keys entry for ciphertext folder")
		}
		childKey, err := crypto.SymDecrypt(key, kv.Key)
		if err != nil {
			return Folder{}, err
		}
		decChild, err := encChild.SymDecrypt(childKey, false)
		if err != nil {
			return Folder{}, err
		}
		decFolders = append(decFolders, decChild)
		decFolderKeys = append(decFolderKeys, KeyedName{Name: cloneBytes(decChild.Name), Key: childKey})
	}

	return Folder{
		Name:       name,
		Owner:      owner,
		Files:      decFiles,
		Folders:    decFolders,
		FileKeys:   decFileKeys,
		FolderKeys: decFolderKeys,
		Signature:  cloneBytes(f.Signature),
	}, nil
}

// AsymEncrypt re-encrypts the whole subtree under receiver's public key,
// authenticated as coming from sender. Unlike SymEncrypt there is no root
// exemption: sharing always re-encrypts name.
func (f Folder) AsymEncrypt(receiver, sender crypto.KeyPair) (Folder, error) {
	if err := f.validate(); err != nil {
		return Folder{}, err
	}

	name, err := crypto.AsymEncrypt(&sender.Secret, &receiver.Public, f.Name)
	if err != nil {
		return Folder{}, err
	}
	owner, err := crypto.AsymEncrypt(&sender.Secret, &receiver.Public, f.Owner)
	if err != nil {
		return Folder{}, err
	}

	encFiles := make([]File, 0, len(f.FileKeys))
	encFileKeys := make([]KeyedName, 0, len(f.FileKeys))
	for _, kv := range f.FileKeys {
		child, ok := findFileByName(f.Files, kv.Name)
		if !ok {
			return Folder{}, safeerr.NewStructuralInvariant("file_keys entry names no file in this folder")
		}
		encChild, err := child.AsymEncrypt(receiver, sender)
		if err != nil {
			return Folder{}, err
		}
		wrapped, err := crypto.AsymEncrypt(&sender.Secret, &receiver.Public, kv.Key)
		if err != nil {
			return Folder{}, err
		}
		encFiles = append(encFiles, encChild)
		encFileKeys = append(encFileKeys, KeyedName{Name: cloneBytes(encChild.Name), Key: wrapped})
	}

	encFolders := make([]Folder, 0, len(f.FolderKeys))
	encFolderKeys := make([]KeyedName, 0, len(f.FolderKeys))
	for _, kv := range f.FolderKeys {
		child, ok := findFolderByName(f.Folders, kv.Name)
		if !ok {
			return Folder{}, safeerr.NewStructuralInvariant("folder_keys entry names no folder in this folder")
		}
		encChild, err := child.AsymEncrypt(receiver, sender)
		if err != nil {
			return Folder{}, err
		}
		wrapped, err := crypto.AsymEncrypt(&sender.Secret, &receiver.Public, kv.Key)
		if err != nil {
			return Folder{}, err
		}
		encFolders = append(encFolders, encChild)
		encFolderKeys = append(encFolderKeys, KeyedName{Name: cloneBytes(encChild.Name), Key: wrapped})
	}

	return Folder{
		Name:       name,
		Owner:      owner,
		Files:      encFiles,
		Folders:    encFolders,
		FileKeys:   encFileKeys,
		FolderKeys: encFolderKeys,
		Signature:  cloneBytes(f.Signature),
	}, nil
}

// AsymDecrypt is the inverse of AsymEncrypt; the recipient decrypts with
// their own secret key, authenticating against the sender's public key.
func (f Folder) AsymDecrypt(receiver, sender crypto.KeyPair) (Folder, error) {
	if err := f.validate(); err != nil {
		return Folder{}, err
	}

	name, err := crypto.AsymDecrypt(&sender.Public, &receiver.Secret, f.Name)
	if err != nil {
		return Folder{}, err
	}
	owner, err := crypto.AsymDecrypt(&sender.Public, &receiver.Secret, f.Owner)
	if err != nil {
		return Folder{}, err
	}

	decFiles := make([]File, 0, len(f.Files))
	decFileKeys := make([]KeyedName, 0, len(f.Files))
	for _, encChild := range f.Files {
		kv, ok := findKeyByName(f.FileKeys, encChild.Name)
		if !ok {
			return Folder{}, safeerr.NewStructuralInvariant("no file_keys entry for ciphertext file")
		}
		childKey, err := crypto.AsymDecrypt(&sender.Public, &receiver.Secret, kv.Key)
		if err != nil {
			return Folder{}, err
		}
		decChild, err := encChild.AsymDecrypt(receiver, sender)
		if err != nil {
			return Folder{}, err
		}
		decFiles = append(decFiles, decChild)
		decFileKeys = append(decFileKeys, KeyedName{Name: cloneBytes(decChild.Name), Key: childKey})
	}

	decFolders := make([]Folder, 0, len(f.Folders))
	decFolderKeys := make([]KeyedName, 0, len(f.Folders))
	for _, encChild := range f.Folders {
		kv, ok := findKeyByName(f.FolderKeys, encChild.Name)
		if !ok {
			return Folder{}, safeerr.NewStructuralInvariant("no folder_keys entry for ciphertext folder")
		}
		childKey, err := crypto.AsymDecrypt(&sender.Public, &receiver.Secret, kv.Key)
		if err != nil {
			return Folder{}, err
		}
		decChild, err := encChild.AsymDecrypt(receiver, sender)
		if err != nil {
			return Folder{}, err
		}
		decFolders = append(decFolders, decChild)
		decFolderKeys = append(decFolderKeys, KeyedName{Name: cloneBytes(decChild.Name), Key: childKey})
	}

	return Folder{
		Name:       name,
		Owner:      owner,
		Files:      decFiles,
		Folders:    decFolders,
		FileKeys:   decFileKeys,
		FolderKeys: decFolderKeys,
		Signature:  cloneBytes(f.Signature),
	}, nil
}

// ToBytes is Folder's share of the canonical depth-first serialization used
// only as signing input: name || owner || each file's bytes || each
// subfolder's bytes, recursively.
func (f Folder) ToBytes() []byte {
	var out []byte
	out = append(out, f.Name...)
	out = append(out, f.Owner...)
	for _, file := range f.Files {
		out = append(out, file.ToBytes()...)
	}
	for _, folder := range f.Folders {
		out = append(out, folder.ToBytes()...)
	}
	return out
}

// Sign returns a copy of f with Signature set to an Ed25519 signature over
// ToBytes(), computed with u's signing key.
func (f Folder) Sign(u *user.User) Folder {
	unsigned := f
	unsigned.Signature = nil
	out := f
	out.Signature = u.Sign(unsigned.ToBytes())
	return out
}

// Verify reports whether f.Signature is a valid Ed25519 signature over
// ToBytes() under u's signing key.
func (f Folder) Verify(u *user.User) error {
	unsigned := f
	unsigned.Signature = nil
	if !u.Verify(unsigned.ToBytes(), f.Signature) {
		return safeerr.NewSignatureInvalid("folder signature does not verify")
	}
	return nil
}

// Display renders the full box-drawing tree for this folder starting at the
// given nesting level. At level 0 the first line reads "Root folder owned
// by:"; at any other level it is an ordinary "Folder:" line.
func (f Folder) Display(level int) string {
	indent := ""
	for i := 0; i < level; i++ {
		indent += "│   "
	}

	var out string
	if level == 0 {
		out = indent + "├── Root folder owned by: " + string(f.Owner) + "\n"
	} else {
		out = indent + "├── Folder: " + string(f.Name) + " Owned by: " + string(f.Owner) + "\n"
	}

	for i, folder := range f.Folders {
		isLast := i == len(f.Folders)-1 && len(f.Files) == 0
		out += folder.DisplayNested(level+1, isLast)
	}
	for i, file := range f.Files {
		isLast := i == len(f.Files)-1
		out += file.DisplayNested(level+1, isLast)
		out += "\n"
	}
	return out
}

// Clone returns a deep copy of f: every byte slice and every descendant
// File/Folder is copied, so mutating the clone can never reach back into
// f's storage. The server clones root folders before handing them out so
// no reference to its own mutable state escapes.
func (f Folder) Clone() Folder {
	out := Folder{
		Name:      cloneBytes(f.Name),
		Owner:     cloneBytes(f.Owner),
		Signature: cloneBytes(f.Signature),
	}
	if f.Files != nil {
		out.Files = make([]File, len(f.Files))
		for i, file := range f.Files {
			out.Files[i] = file.Clone()
		}
	}
	if f.Folders != nil {
		out.Folders = make([]Folder, len(f.Folders))
		for i, folder := range f.Folders {
			out.Folders[i] = folder.Clone()
		}
	}
	if f.FileKeys != nil {
		out.FileKeys = make([]KeyedName, len(f.FileKeys))
		for i, kv := range f.FileKeys {
			out.FileKeys[i] = KeyedName{Name: cloneBytes(kv.Name), Key: cloneBytes(kv.Key)}
		}
	}
	if f.FolderKeys != nil {
		out.FolderKeys = make([]KeyedName, len(f.FolderKeys))
		for i, kv := range f.FolderKeys {
			out.FolderKeys[i] = KeyedName{Name: cloneBytes(kv.Name), Key: cloneBytes(kv.Key)}
		}
	}
	return out
}

// DisplayNested renders one box-drawing tree line for this subfolder plus
// its own children, indented for the given nesting level.
func (f Folder) DisplayNested(level int, isLast bool) string {
	indent := ""
	for i := 0; i < level-1; i++ {
		indent += "│   "
	}
	if isLast {
		indent += "    "
	} else {
		indent += "│   "
	}
	out := indent + "├── Folder: " + string(f.Name) + " Owned by: " + string(f.Owner) + "\n"

	for i, folder := range f.Folders {
		childLast := i == len(f.Folders)-1 && len(f.Files) == 0
		out += folder.DisplayNested(level+1, childLast)
	}
	for i, file := range f.Files {
		childLast := i == len(f.Files)-1
		out += file.DisplayNested(level+1, childLast)
		out += "\n"
	}
	return out
}
