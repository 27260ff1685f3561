package repo

import "errors"

// ErrNotFound — run или задача с таким ID не сохранены.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists — запись с таким ID уже сохранена.
var ErrAlreadyExists = errors.New("already exists")
