package payload

// payload turns the files a user wants to send into message parts. It
// decides whether a file is an inline image, a text attachment or a binary
// attachment, and skips (with a warning) anything it can't use rather than
// failing the whole send.
