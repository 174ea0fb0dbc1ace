package html

// html inspects the HTML bodies of outgoing email. It's not concerned with
// building or sending messages, only with reading markup, e.g., finding the
// content IDs that a body expects inline images to carry.
