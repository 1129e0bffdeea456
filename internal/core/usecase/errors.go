package usecase

import "errors"

var errEmptyQuestion = errors.New("question is empty")
