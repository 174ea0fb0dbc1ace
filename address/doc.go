package address

// address filters raw recipient strings down to the ones we can send to. It
// checks syntax against a fixed pattern and, when a DomainChecker is
// supplied, drops recipients whose domains can't receive mail. It doesn't
// talk to relays and knows nothing about message content.
